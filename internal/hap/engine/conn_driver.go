package engine

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/hapcore/hapd/internal/hap/dispatch"
	"github.com/hapcore/hapd/internal/hap/httpreq"
	"github.com/hapcore/hapd/internal/hap/securesession"
	"github.com/hapcore/hapd/internal/hap/serializer"
	"github.com/hapcore/hapd/internal/hap/session"
	"github.com/hapcore/hapd/internal/logger"
	"github.com/hapcore/hapd/pkg/metrics"
)

// readResult is one parsed request, or the error that ended the read
// loop (io.EOF on a clean client disconnect, anything else on a
// malformed request or I/O failure).
type readResult struct {
	req  *httpreq.Request
	body []byte
	err  error
}

// connDriver runs one session's goroutine: a reader sub-goroutine feeds
// parsed requests over a channel; the driver's own select also watches
// the session's EventNotify channel, reproducing spec.md §5's "Reading
// session with empty inbound buffer" event-delivery fence without a
// non-blocking socket (SPEC_FULL §0).
type connDriver struct {
	sess    *session.Session
	disp    *dispatch.Dispatcher
	metrics metrics.HAPMetrics
}

func newConnDriver(sess *session.Session, disp *dispatch.Dispatcher, m metrics.HAPMetrics) *connDriver {
	return &connDriver{sess: sess, disp: disp, metrics: m}
}

// run drives the session until the connection closes, the engine shuts
// down, or a fatal protocol error occurs. It returns the reason the
// session ended, for the caller's metrics label.
func (d *connDriver) run(ctx context.Context, shutdown <-chan struct{}) string {
	reqCh := make(chan readResult)
	go d.readLoop(reqCh)

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-shutdown:
			return "shutdown"
		case res, ok := <-reqCh:
			if !ok {
				return "client"
			}
			if res.err != nil {
				if !errors.Is(res.err, io.EOF) {
					d.writeAndFlush(dispatch.RespMalformed)
				}
				return "client"
			}
			if !d.handleRequest(ctx, res.req, res.body) {
				return "client"
			}
		case <-d.sess.EventNotify:
			d.flushEvents()
		}
	}
}

// readLoop parses HTTP requests one at a time off the session's reader
// and sends each to out; on the first read error it sends that error,
// closes out, and returns. Grounded
// on NFSConnection.Serve's read-then-dispatch loop
// (pkg/adapter/nfs/nfs_connection.go); here the read half is split into
// its own goroutine so the session's main select can also observe
// EventNotify while blocked on a read.
func (d *connDriver) readLoop(out chan<- readResult) {
	defer close(out)
	for {
		d.sess.SetState(session.StateReading)
		req, err := httpreq.Read(d.sess.Reader)
		if err != nil {
			out <- readResult{err: err}
			return
		}

		var body []byte
		if req.ContentLength > 0 {
			body = make([]byte, req.ContentLength)
			if _, err := io.ReadFull(d.sess.Reader, body); err != nil {
				out <- readResult{err: err}
				return
			}
		}

		d.sess.Touch()
		out <- readResult{req: req, body: body}
	}
}

// handleRequest dispatches one parsed request and writes its response.
// Returns false if the connection should close (fatal HTTP parse error
// already handled in run, or a write failure here).
func (d *connDriver) handleRequest(ctx context.Context, req *httpreq.Request, body []byte) bool {
	d.sess.SetState(session.StateWriting)
	defer d.sess.SetState(session.StateReading)

	result := d.disp.Handle(ctx, d.sess, req.Method, req.URI, body)

	if result.Stream != nil {
		return d.writeStream(result.Stream)
	}

	if d.metrics != nil {
		d.metrics.RecordDispatch(req.URI, 0)
	}
	return d.writeAndFlush(result.Response)
}

// writeStream drains a resumable serializer.Context in
// securesession.MaxPlaintextFrameSize chunks, framing each as an HTTP
// chunked-transfer-encoding segment (spec.md §4.9).
func (d *connDriver) writeStream(ctx *serializer.Context) bool {
	header := []byte("HTTP/1.1 200 OK\r\nContent-Type: application/hap+json\r\nTransfer-Encoding: chunked\r\n\r\n")
	if _, err := d.sess.Writer.Write(header); err != nil {
		return false
	}

	const chunkSize = securesession.MaxPlaintextFrameSize
	for {
		chunk, done, err := ctx.Next(1, chunkSize)
		if err != nil {
			logger.Debug("hap engine serializer error", "error", err)
			return false
		}
		if len(chunk) > 0 {
			if _, err := d.sess.Writer.Write(serializer.FrameChunk(chunk, false)); err != nil {
				return false
			}
		}
		if done {
			if _, err := d.sess.Writer.Write(serializer.FrameChunk(nil, true)); err != nil {
				return false
			}
			break
		}
	}
	return d.sess.Writer.Flush() == nil
}

func (d *connDriver) writeAndFlush(resp []byte) bool {
	if _, err := d.sess.Writer.Write(resp); err != nil {
		return false
	}
	return d.sess.Writer.Flush() == nil
}

// flushEvents drains this session's pending characteristic changes into
// one coalesced EVENT/1.0 frame (spec.md §5). The session must be in
// Reading state with an otherwise-idle connection for this to fire,
// since it shares the driver's single-writer discipline with
// handleRequest.
func (d *connDriver) flushEvents() {
	drained := d.sess.DrainPending()
	if len(drained) == 0 {
		return
	}

	body, err := serializer.EventBody(d.disp.DB, d.sess, drained)
	if err != nil {
		logger.Debug("hap engine event serialization error", "error", err)
		return
	}

	if d.metrics != nil {
		d.metrics.RecordEventBatch(len(drained))
	}

	frame := append([]byte("EVENT/1.0 200 OK\r\nContent-Type: application/hap+json\r\nContent-Length: "),
		[]byte(strconv.Itoa(len(body)))...)
	frame = append(frame, '\r', '\n', '\r', '\n')
	frame = append(frame, body...)

	d.sess.SetState(session.StateWriting)
	_ = d.writeAndFlush(frame)
	d.sess.SetState(session.StateReading)
}
