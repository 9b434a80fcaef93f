// Package httpreq parses the restricted HTTP/1.1 request subset the HAP
// IP transport accepts: a request line, a small set of case-insensitive
// headers, and an optional body of known length. It is built on
// bufio/net/textproto the way
// pkg/adapter/nfs/nfs_connection.go's readFragmentHeader/readRPCMessage
// pair reads a fragment header before decoding the RPC message it
// frames — read a bounded structural prefix first, then the body.
//
// HTTP parse errors are always fatal to the connection: this package
// never attempts recovery or resynchronization, to defeat request
// smuggling.
package httpreq

import (
	"bufio"
	"errors"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
)

// ContentType enumerates the three HAP wire content types; any other
// value on the wire is ContentTypeUnknown, which is itself a legal value
// for bodyless requests.
type ContentType int

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeHAPJSON
	ContentTypeOctetStream
	ContentTypePairingTLV8
)

func parseContentType(v string) ContentType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "application/hap+json":
		return ContentTypeHAPJSON
	case "application/octet-stream":
		return ContentTypeOctetStream
	case "application/pairing+tlv8":
		return ContentTypePairingTLV8
	default:
		return ContentTypeUnknown
	}
}

// ErrMalformed is returned for any structural parse failure: bad request
// line, duplicate Content-Length/Content-Type headers, or a Content-Length
// value that isn't a non-negative decimal integer.
var ErrMalformed = errors.New("httpreq: malformed request")

// Request is a parsed HTTP/1.1 request line plus the headers the HAP
// transport recognizes. Header values not listed here are ignored, since
// spec.md §4.3 only names Content-Length and Content-Type as meaningful.
type Request struct {
	Method string
	URI    string

	// ContentLength is -1 when the request carries no body.
	ContentLength int64
	ContentType   ContentType

	rawHeader textproto.MIMEHeader
}

// Header returns the raw parsed header, for callers that need a value
// httpreq itself does not interpret (none currently exist in this
// module, but kept for forward compatibility with new dispatch routes).
func (r *Request) Header(name string) string {
	return r.rawHeader.Get(name)
}

// Read parses one HTTP request from r: the request line and headers. The
// caller is responsible for reading exactly ContentLength body bytes
// afterward (httpreq does not buffer the body, since the session owns
// the inbound buffer it is read into).
func Read(r *bufio.Reader) (*Request, error) {
	tp := textproto.NewReader(r)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("httpreq: read request line: %w", err)
	}

	method, uri, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: read headers: %v", ErrMalformed, err)
	}

	req := &Request{
		Method:        method,
		URI:           uri,
		ContentLength: -1,
		rawHeader:     header,
	}

	if values := header["Content-Length"]; len(values) > 0 {
		if len(values) > 1 {
			return nil, fmt.Errorf("%w: duplicate Content-Length header", ErrMalformed)
		}
		length, err := parseContentLength(values[0])
		if err != nil {
			return nil, err
		}
		req.ContentLength = length
	}

	if values := header["Content-Type"]; len(values) > 0 {
		if len(values) > 1 {
			return nil, fmt.Errorf("%w: duplicate Content-Type header", ErrMalformed)
		}
		req.ContentType = parseContentType(values[0])
	}

	return req, nil
}

func parseRequestLine(line string) (method, uri string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", fmt.Errorf("%w: bad request line %q", ErrMalformed, line)
	}
	if !strings.HasPrefix(parts[2], "HTTP/1.1") && !strings.HasPrefix(parts[2], "HTTP/1.0") {
		return "", "", fmt.Errorf("%w: unsupported protocol %q", ErrMalformed, parts[2])
	}
	return parts[0], parts[1], nil
}

// parseContentLength requires a plain non-negative decimal integer,
// tolerating only leading/trailing horizontal-tab/space, per spec.md
// §4.3. It rejects a leading '+', leading zeros are accepted since
// strconv.ParseUint already accepts them.
func parseContentLength(v string) (int64, error) {
	trimmed := strings.Trim(v, " \t")
	if trimmed == "" || trimmed[0] == '+' || trimmed[0] == '-' {
		return 0, fmt.Errorf("%w: invalid Content-Length %q", ErrMalformed, v)
	}
	n, err := strconv.ParseUint(trimmed, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid Content-Length %q: %v", ErrMalformed, v, err)
	}
	return int64(n), nil
}
