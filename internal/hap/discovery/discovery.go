// Package discovery implements HAP service-discovery announcement
// (spec.md §4.10, C11): publishing an _hap._tcp DNS-SD service instance
// carrying the TXT keys the spec lists (c#, ff, id, md, pv, s#, sf, ci,
// sh), and republishing them whenever pairing state transitions alter
// sf/sh.
//
// Nothing else in this module advertises a network service over mDNS,
// so this package is built directly on stdlib net (justified in
// DESIGN.md) rather than adapted from an existing file. It still
// follows the module's general shape for an external-facing boundary: a
// small interface (Announcer) with one concrete implementation, the
// same pattern internal/hap/platform uses to wrap net.Listen.
package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/hapcore/hapd/internal/logger"
)

// Config is the set of TXT values for one announced HAP accessory
// server, named after the wire key each field produces (spec.md §4.10).
type Config struct {
	// Port is the TCP port the accessory server listens on.
	Port uint16

	// InstanceName is the service instance's display name, conventionally
	// "<Name> <hex-suffix-of-id>".
	InstanceName string

	ConfigurationNumber uint64 // c#
	FeatureFlags         uint8  // ff
	DeviceID              string // id, format "XX:XX:XX:XX:XX:XX"
	Model                 string // md
	StatusFlags           uint8  // sf
	Category              int    // ci

	// SetupHash is the base64 setup hash. Empty means no setup id is
	// provisioned yet and the "sh" key is omitted entirely (spec.md
	// §4.10).
	SetupHash string
}

const (
	serviceType      = "_hap._tcp"
	protocolVersion  = "1.1"
	serviceSubtype   = "1" // s#, "1" for IP
)

// TXTRecords renders cfg's TXT keys in the fixed order spec.md §4.10
// lists them, skipping "sh" when no setup hash is provisioned.
func TXTRecords(cfg Config) []string {
	records := []string{
		fmt.Sprintf("c#=%d", cfg.ConfigurationNumber),
		fmt.Sprintf("ff=%d", cfg.FeatureFlags),
		fmt.Sprintf("id=%s", cfg.DeviceID),
		fmt.Sprintf("md=%s", cfg.Model),
		fmt.Sprintf("pv=%s", protocolVersion),
		fmt.Sprintf("s#=%s", serviceSubtype),
		fmt.Sprintf("sf=%d", cfg.StatusFlags),
		fmt.Sprintf("ci=%d", cfg.Category),
	}
	if cfg.SetupHash != "" {
		records = append(records, fmt.Sprintf("sh=%s", cfg.SetupHash))
	}
	return records
}

// Announcer publishes and maintains a HAP service-discovery
// advertisement. UpdateTXT must be safe to call concurrently with a
// running Start.
type Announcer interface {
	Start(ctx context.Context) error
	UpdateTXT(cfg Config) error
	Stop() error
}

// mdnsAnnouncer periodically sends unsolicited multicast DNS-SD
// announcements for the accessory server, re-sending immediately whenever
// UpdateTXT changes the advertised record (the "update-txt-records"
// operation spec.md §4.10 names).
type mdnsAnnouncer struct {
	mu     sync.Mutex
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}

	responder responder
}

// NewAnnouncer constructs the production Announcer, backed by a
// best-effort mDNS responder (net.ListenMulticastUDP on 224.0.0.251:5353,
// RFC 6762 §8.3's unsolicited-announcement strategy rather than full
// query/response matching, which keeps this package's only non-stdlib
// dependency at zero per C11's domain-stack entry).
func NewAnnouncer(cfg Config) Announcer {
	return &mdnsAnnouncer{cfg: cfg, responder: newUDPResponder()}
}

func (a *mdnsAnnouncer) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return fmt.Errorf("discovery: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	cfg := a.cfg
	a.mu.Unlock()

	if err := a.responder.open(); err != nil {
		return fmt.Errorf("discovery: open responder: %w", err)
	}

	logger.Info("hap discovery announcing", "instance", cfg.InstanceName, "port", cfg.Port)
	go func() {
		defer close(a.done)
		a.responder.run(runCtx, func() Config {
			a.mu.Lock()
			defer a.mu.Unlock()
			return a.cfg
		})
	}()
	return nil
}

// UpdateTXT replaces the advertised record and triggers an immediate
// re-announcement, matching spec.md §4.10's "update-txt-records is
// called whenever pairing state transitions alter sf/sh".
func (a *mdnsAnnouncer) UpdateTXT(cfg Config) error {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	a.responder.announceNow()
	return nil
}

func (a *mdnsAnnouncer) Stop() error {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return a.responder.close()
}
