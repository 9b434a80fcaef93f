package dispatch

import "fmt"

// The following are the exact HTTP response byte constants from spec.md
// §6. They are deliberately literal (not built through net/http) since
// spec.md requires the bytes to match exactly, including header casing
// and the absence of a trailing Server/Date header the stdlib would add.

// RespNoContent is the success-empty response (204).
var RespNoContent = []byte("HTTP/1.1 204 No Content\r\n\r\n")

// RespMalformed is returned for any HTTP/JSON parse failure (400, no
// body).
var RespMalformed = []byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n")

// RespNotFound is returned for an unmatched path on a secured session
// (404, no body).
var RespNotFound = []byte("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n")

// RespMethodNotAllowed is returned for a bad method on a matched path
// (405, no body).
var RespMethodNotAllowed = []byte("HTTP/1.1 405 Method Not Allowed\r\nContent-Length: 0\r\n\r\n")

// RespUnauthorized is returned for any request on an unsecured session
// when security is required, and for an unmatched path on an unsecured
// session (470, no body).
var RespUnauthorized = []byte("HTTP/1.1 470 Connection Authorization Required\r\nContent-Length: 0\r\n\r\n")

// RespServerError is the generic 500 (no body).
var RespServerError = []byte("HTTP/1.1 500 Internal Server Error\r\nContent-Length: 0\r\n\r\n")

// jsonStatusResponse builds a "<statusLine>\r\nContent-Type:
// application/hap+json\r\nContent-Length:<n>\r\n\r\n{"status":<code>}"
// response, used for the insufficient-privileges (400), unauthorized
// (470), and out-of-resources (500) variants that carry a HAP status
// body.
func jsonStatusResponse(statusLine string, hapStatus int) []byte {
	body := fmt.Sprintf(`{"status":%d}`, hapStatus)
	return []byte(fmt.Sprintf("%s\r\nContent-Type: application/hap+json\r\nContent-Length:%d\r\n\r\n%s",
		statusLine, len(body), body))
}

// RespInsufficientPrivileges is the 400 variant carrying
// {"status":-70401}.
func RespInsufficientPrivileges() []byte {
	return jsonStatusResponse("HTTP/1.1 400 Bad Request", -70401)
}

// RespUnauthorizedWithStatus is the 470 variant carrying
// {"status":-70411}.
func RespUnauthorizedWithStatus() []byte {
	return jsonStatusResponse("HTTP/1.1 470 Connection Authorization Required", -70411)
}

// RespOutOfResources is the 500 variant carrying {"status":-70407}.
func RespOutOfResources() []byte {
	return jsonStatusResponse("HTTP/1.1 500 Internal Server Error", -70407)
}

// jsonOK wraps an arbitrary JSON body in a 200 OK response with the
// hap+json content type.
func jsonOK(body []byte) []byte {
	return []byte(fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: application/hap+json\r\nContent-Length: %d\r\n\r\n%s",
		len(body), body))
}

// jsonMultiStatus wraps an arbitrary JSON body in a 207 Multi-Status
// response (spec.md §7: "a single write in a multi-write request may
// fail without aborting the batch; the response is then 207
// Multi-Status").
func jsonMultiStatus(body []byte) []byte {
	return []byte(fmt.Sprintf("HTTP/1.1 207 Multi-Status\r\nContent-Type: application/hap+json\r\nContent-Length: %d\r\n\r\n%s",
		len(body), body))
}
