// Package serializer implements the resumable chunked JSON serializer
// for GET /accessories: a single serialize-next call produces a bounded
// slice of unframed JSON (FrameChunk wraps it as one HTTP
// Transfer-Encoding: chunked segment), and can be called again to resume
// exactly where the previous call left off. The Context holds the walk
// position over the accessory tree and its own buffer of output not yet
// returned.
//
// Nothing else in this module streams a response incrementally (NFS
// replies are single datagrams), so the chunking mechanics are grounded
// on nfs_connection_reply.go's write-then-flush pattern, generalized
// from "write one reply" to "write one bounded chunk of a longer
// stream".
package serializer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hapcore/hapd/internal/hap/base64hap"
	"github.com/hapcore/hapd/internal/hap/characteristic"
	"github.com/hapcore/hapd/internal/hap/numfmt"
)

// step is one coarse unit of serialization work: open an array, open an
// object, serialize one characteristic, close an object/array. Coarser
// than a byte-incremental grammar, but it is the granularity at which
// the accessory -> service -> characteristic -> fields walk in spec.md
// §4.9 actually produces content, and it keeps this package's size
// proportional to what GET /accessories needs rather than reimplementing
// a general streaming JSON encoder.
type step func(out *bytes.Buffer) error

// Context is the resumable serialization cursor for one GET /accessories
// response. It is driven by repeated calls to Next until Done.
type Context struct {
	session characteristic.SessionContext
	steps   []step
	index   int
	pending bytes.Buffer
	done    bool
}

// NewContext builds the full ordered step plan for db up front; stepping
// through it is what makes the response resumable across many Next
// calls without re-walking the tree each time.
func NewContext(db *characteristic.Database, session characteristic.SessionContext) *Context {
	c := &Context{session: session}
	c.plan(db)
	return c
}

func (c *Context) plan(db *characteristic.Database) {
	c.steps = append(c.steps, writeRaw(`{"accessories":[`))

	for ai, a := range db.Accessories {
		if ai > 0 {
			c.steps = append(c.steps, writeRaw(","))
		}
		c.planAccessory(a)
	}

	c.steps = append(c.steps, writeRaw(`]}`))
}

func (c *Context) planAccessory(a *characteristic.Accessory) {
	c.steps = append(c.steps, writeRaw(fmt.Sprintf(`{"aid":%s,"services":[`, numfmt.FormatUint64(a.AID))))

	for si, s := range a.Services {
		if si > 0 {
			c.steps = append(c.steps, writeRaw(","))
		}
		c.planService(a.AID, s)
	}

	c.steps = append(c.steps, writeRaw(`]}`))
}

func (c *Context) planService(aid uint64, s *characteristic.Service) {
	c.steps = append(c.steps, writeRaw(fmt.Sprintf(`{"iid":%s,"type":%s,"characteristics":[`,
		numfmt.FormatUint64(s.IID), jsonString(s.TypeUUID))))

	for ci, ch := range s.Characteristics {
		if ci > 0 {
			c.steps = append(c.steps, writeRaw(","))
		}
		characteristicCopy := ch
		c.steps = append(c.steps, func(out *bytes.Buffer) error {
			return writeCharacteristic(out, aid, characteristicCopy, c.session)
		})
	}

	c.steps = append(c.steps, writeRaw(`]}`))
}

func writeRaw(s string) step {
	return func(out *bytes.Buffer) error {
		out.WriteString(s)
		return nil
	}
}

func jsonString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

// writeCharacteristic reads the characteristic's current value (outside
// event-notification context) and writes its JSON object, matching the
// read-response shape of spec.md §6.
func writeCharacteristic(out *bytes.Buffer, aid uint64, ch *characteristic.Characteristic, session characteristic.SessionContext) error {
	value, status := ch.Read(context.Background(), session, characteristic.ReadContextNormal)

	out.WriteString(fmt.Sprintf(`{"aid":%s,"iid":%s,"type":%s`,
		numfmt.FormatUint64(aid), numfmt.FormatUint64(ch.IID), jsonString(ch.TypeUUID)))
	if status != characteristic.StatusSuccess {
		out.WriteString(fmt.Sprintf(`,"status":%d}`, status))
		return nil
	}

	out.WriteString(`,"value":`)
	if err := writeValue(out, ch.Format, value); err != nil {
		return err
	}
	out.WriteString(`}`)
	return nil
}

func writeValue(out *bytes.Buffer, format characteristic.Format, value any) error {
	if value == nil {
		out.WriteString("null")
		return nil
	}

	switch format {
	case characteristic.FormatFloat:
		f, _ := value.(float64)
		out.WriteString(numfmt.FormatFloat32(float32(f)))
	case characteristic.FormatData:
		b, _ := value.([]byte)
		out.WriteString(jsonString(base64hap.EncodeToString(b)))
	case characteristic.FormatTLV8:
		b, _ := value.([]byte)
		out.WriteString(jsonString(base64hap.EncodeToString(b)))
	case characteristic.FormatString:
		s, _ := value.(string)
		out.WriteString(jsonString(s))
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("serializer: marshal value: %w", err)
		}
		out.Write(encoded)
	}
	return nil
}

// Next produces the next chunk of JSON, at least minBytes and at most
// maxBytes long, unless the document is complete (in which case it may
// be shorter, including empty). done is true once every step has run and
// the internal pending buffer has fully drained.
func (c *Context) Next(minBytes, maxBytes int) (chunk []byte, done bool, err error) {
	for c.pending.Len() < minBytes && c.index < len(c.steps) {
		if err := c.steps[c.index](&c.pending); err != nil {
			return nil, false, err
		}
		c.index++
	}

	take := c.pending.Len()
	if take > maxBytes {
		take = maxBytes
	}
	chunk = c.pending.Next(take)

	c.done = c.index >= len(c.steps) && c.pending.Len() == 0
	return chunk, c.done, nil
}

// Done reports whether the serializer has produced every byte of the
// document and drained its internal pending buffer.
func (c *Context) Done() bool { return c.done }
