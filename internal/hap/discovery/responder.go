package discovery

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hapcore/hapd/internal/logger"
)

// reannounceInterval re-sends the full advertisement even when nothing
// changed, so a controller whose cache entry expired or a newly-joined
// network segment still converges without a restart.
const reannounceInterval = 75 * time.Second

var (
	mdnsGroup = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353}

	// classINCacheFlush marks an answer as the authoritative, sole owner
	// of its name (RFC 6762 §10.2). It is set on the SRV, TXT and A
	// records, which are unique to this instance; the shared PTR record is
	// sent with plain class IN.
	classINCacheFlush uint16 = 0x8001
)

// responder owns the UDP multicast socket and the periodic/triggered
// announce loop. Split out of mdnsAnnouncer so tests can substitute a
// fake that records built packets without opening a real socket.
type responder interface {
	open() error
	run(ctx context.Context, cfg func() Config)
	announceNow()
	close() error
}

type udpResponder struct {
	conn    *net.UDPConn
	trigger chan struct{}
}

func newUDPResponder() *udpResponder {
	return &udpResponder{trigger: make(chan struct{}, 1)}
}

func (r *udpResponder) open() error {
	conn, err := net.ListenMulticastUDP("udp4", nil, mdnsGroup)
	if err != nil {
		return err
	}
	r.conn = conn
	return nil
}

func (r *udpResponder) announceNow() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *udpResponder) run(ctx context.Context, cfg func() Config) {
	ticker := time.NewTicker(reannounceInterval)
	defer ticker.Stop()

	r.send(cfg())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.send(cfg())
		case <-r.trigger:
			r.send(cfg())
		}
	}
}

func (r *udpResponder) close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

func (r *udpResponder) send(cfg Config) {
	packet, err := buildAnnouncement(cfg)
	if err != nil {
		logger.Debug("hap discovery build announcement failed", "error", err)
		return
	}
	if _, err := r.conn.WriteToUDP(packet, mdnsGroup); err != nil {
		logger.Debug("hap discovery send failed", "error", err)
	}
}

// buildAnnouncement encodes an unsolicited DNS-SD response advertising
// one PTR/SRV/TXT/A record set, RFC 6762 §8.3 style: sent without a
// preceding query, answer section only, no question section.
func buildAnnouncement(cfg Config) ([]byte, error) {
	host := localHostname()
	instance := dnsEncodeName(cfg.InstanceName + "." + serviceType + ".local.")
	service := dnsEncodeName(serviceType + ".local.")
	target := dnsEncodeName(host)

	var buf bytes.Buffer

	answerCount := uint16(3)
	addr := firstIPv4()
	if addr != nil {
		answerCount++
	}

	writeHeader(&buf, answerCount)

	writeRR(&buf, service, typePTR, 0x0001, 4500, func(rdata *bytes.Buffer) {
		rdata.Write(instance)
	})

	writeRR(&buf, instance, typeSRV, classINCacheFlush, 120, func(rdata *bytes.Buffer) {
		writeUint16(rdata, 0) // priority
		writeUint16(rdata, 0) // weight
		writeUint16(rdata, cfg.Port)
		rdata.Write(target)
	})

	writeRR(&buf, instance, typeTXT, classINCacheFlush, 4500, func(rdata *bytes.Buffer) {
		for _, rec := range TXTRecords(cfg) {
			rdata.WriteByte(byte(len(rec)))
			rdata.WriteString(rec)
		}
	})

	if addr != nil {
		writeRR(&buf, target, typeA, classINCacheFlush, 120, func(rdata *bytes.Buffer) {
			rdata.Write(addr.To4())
		})
	}

	return buf.Bytes(), nil
}

const (
	typeA   uint16 = 1
	typePTR uint16 = 12
	typeTXT uint16 = 16
	typeSRV uint16 = 33
)

// writeHeader writes a 12-byte DNS header for an unsolicited,
// authoritative response with no questions.
func writeHeader(buf *bytes.Buffer, ancount uint16) {
	writeUint16(buf, 0)      // id
	writeUint16(buf, 0x8400) // QR=1, opcode=0, AA=1
	writeUint16(buf, 0)      // qdcount
	writeUint16(buf, ancount)
	writeUint16(buf, 0) // nscount
	writeUint16(buf, 0) // arcount
}

// writeRR appends one resource record: name, type, class, ttl, and a
// length-prefixed RDATA built by fill.
func writeRR(buf *bytes.Buffer, name []byte, rrtype, class uint16, ttl uint32, fill func(*bytes.Buffer)) {
	buf.Write(name)
	writeUint16(buf, rrtype)
	writeUint16(buf, class)
	writeUint32(buf, ttl)

	var rdata bytes.Buffer
	fill(&rdata)
	writeUint16(buf, uint16(rdata.Len()))
	buf.Write(rdata.Bytes())
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// dnsEncodeName renders a dotted name as length-prefixed labels
// terminated by a zero byte. No name-compression pointers are emitted;
// every record in this package's small, fixed answer set names itself in
// full, which keeps the encoder independent of where it sits in the
// packet.
func dnsEncodeName(name string) []byte {
	name = strings.TrimSuffix(name, ".")
	var out bytes.Buffer
	for _, label := range strings.Split(name, ".") {
		out.WriteByte(byte(len(label)))
		out.WriteString(label)
	}
	out.WriteByte(0)
	return out.Bytes()
}

func localHostname() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "hapd"
	}
	host = strings.TrimSuffix(host, ".local")
	host = strings.TrimSuffix(host, ".")
	return host + ".local."
}

// firstIPv4 returns the first non-loopback IPv4 address on the host, or
// nil if none is found (the A record is then omitted; controllers can
// still resolve the SRV target through their own mDNS cache).
func firstIPv4() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
