package serializer

import "fmt"

// FrameChunk wraps one serialized chunk in HTTP chunked-transfer framing:
// hex-length CRLF, data, CRLF (spec.md §4.9). Pass an empty chunk with
// final=true to produce the terminating "0\r\n\r\n" sequence.
func FrameChunk(chunk []byte, final bool) []byte {
	if final {
		return []byte("0\r\n\r\n")
	}
	framed := make([]byte, 0, len(chunk)+16)
	framed = append(framed, []byte(fmt.Sprintf("%x\r\n", len(chunk)))...)
	framed = append(framed, chunk...)
	framed = append(framed, '\r', '\n')
	return framed
}
