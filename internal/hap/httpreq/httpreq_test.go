package httpreq

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestReadSimpleRequest(t *testing.T) {
	req, err := Read(reader("GET /characteristics?id=1.9 HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/characteristics?id=1.9", req.URI)
	require.Equal(t, int64(-1), req.ContentLength)
	require.Equal(t, ContentTypeUnknown, req.ContentType)
}

func TestReadWithContentLengthAndType(t *testing.T) {
	req, err := Read(reader("PUT /characteristics HTTP/1.1\r\nContent-Length: 42\r\nContent-Type: application/hap+json\r\n\r\n"))
	require.NoError(t, err)
	require.Equal(t, int64(42), req.ContentLength)
	require.Equal(t, ContentTypeHAPJSON, req.ContentType)
}

func TestDuplicateContentLengthRejected(t *testing.T) {
	_, err := Read(reader("PUT /characteristics HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\n"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDuplicateContentTypeRejected(t *testing.T) {
	_, err := Read(reader("PUT /characteristics HTTP/1.1\r\nContent-Type: application/hap+json\r\nContent-Type: application/octet-stream\r\n\r\n"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestMalformedContentLengthRejected(t *testing.T) {
	cases := []string{"-1", "+1", "abc", ""}
	for _, c := range cases {
		_, err := Read(reader("PUT /x HTTP/1.1\r\nContent-Length: " + c + "\r\n\r\n"))
		require.Error(t, err, c)
	}
}

func TestContentLengthToleratesSurroundingWhitespace(t *testing.T) {
	req, err := Read(reader("PUT /x HTTP/1.1\r\nContent-Length: \t 7 \t\r\n\r\n"))
	require.NoError(t, err)
	require.Equal(t, int64(7), req.ContentLength)
}

func TestUnknownContentType(t *testing.T) {
	req, err := Read(reader("PUT /x HTTP/1.1\r\nContent-Type: text/plain\r\n\r\n"))
	require.NoError(t, err)
	require.Equal(t, ContentTypeUnknown, req.ContentType)
}

func TestMalformedRequestLine(t *testing.T) {
	_, err := Read(reader("GET /only-two-tokens\r\n\r\n"))
	require.Error(t, err)
}
