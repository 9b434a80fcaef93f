package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTXTRecordsOrderAndOmitsSetupHashWhenEmpty(t *testing.T) {
	records := TXTRecords(Config{
		ConfigurationNumber: 1,
		FeatureFlags:        0,
		DeviceID:            "AA:BB:CC:DD:EE:FF",
		Model:               "HAPD1,1",
		StatusFlags:         1,
		Category:            5,
	})

	require.Equal(t, []string{
		"c#=1",
		"ff=0",
		"id=AA:BB:CC:DD:EE:FF",
		"md=HAPD1,1",
		"pv=1.1",
		"s#=1",
		"sf=1",
		"ci=5",
	}, records)
}

func TestTXTRecordsIncludesSetupHashWhenPresent(t *testing.T) {
	records := TXTRecords(Config{SetupHash: "abcd"})
	require.Equal(t, "sh=abcd", records[len(records)-1])
}

type fakeResponder struct {
	mu      sync.Mutex
	opened  bool
	closed  bool
	sends   int
	trigger chan struct{}
}

func newFakeResponder() *fakeResponder { return &fakeResponder{trigger: make(chan struct{}, 1)} }

func (f *fakeResponder) open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	return nil
}

func (f *fakeResponder) run(ctx context.Context, cfg func() Config) {
	f.mu.Lock()
	f.sends++
	f.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.trigger:
			f.mu.Lock()
			f.sends++
			f.mu.Unlock()
		}
	}
}

func (f *fakeResponder) announceNow() {
	select {
	case f.trigger <- struct{}{}:
	default:
	}
}

func (f *fakeResponder) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeResponder) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func TestAnnouncerUpdateTXTTriggersReannounce(t *testing.T) {
	fr := newFakeResponder()
	a := &mdnsAnnouncer{cfg: Config{InstanceName: "Lamp"}, responder: fr}

	require.NoError(t, a.Start(context.Background()))
	require.True(t, fr.opened)

	require.Eventually(t, func() bool { return fr.sendCount() >= 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.UpdateTXT(Config{InstanceName: "Lamp", StatusFlags: 1}))
	require.Eventually(t, func() bool { return fr.sendCount() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Stop())
	require.True(t, fr.closed)
}

func TestDNSEncodeNameTerminatesWithZeroLabel(t *testing.T) {
	encoded := dnsEncodeName("_hap._tcp.local.")
	require.Equal(t, byte(0), encoded[len(encoded)-1])
	require.Equal(t, byte(4), encoded[0])
}
