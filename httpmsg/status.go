package httpmsg

import (
	"strconv"
	"strings"
	"time"
)

// statusTable mirrors server/protocol/builder.go's flat lookup: codes are
// few and fixed, so an array beats a map.
var statusTable = [505]string{
	100: "100 Continue",
	101: "101 WebSocket Protocol Handshake",

	200: "200 OK",
	204: "204 No Content",
	206: "206 Partial Content",

	301: "301 Moved Permanently",
	302: "302 Found",
	304: "304 Not Modified",

	400: "400 Bad Request",
	403: "403 Forbidden",
	404: "404 Not Found",
	405: "405 Method Not Allowed",
	416: "416 Range Not Satisfiable",

	500: "500 Internal Server Error",
	501: "501 Not Implemented",
	503: "503 Service Unavailable",
}

// StatusLine returns "<code> <name>", falling back to 500 for an
// unregistered code.
func StatusLine(code int) string {
	if code < 0 || code >= len(statusTable) || statusTable[code] == "" {
		return statusTable[500]
	}
	return statusTable[code]
}

// ServerProduct is sent in every response's Server: header.
const ServerProduct = "wsconn/1.0"

// WriteCommonHeaders appends the status line and the mandatory common
// headers (spec §4.6) to dst, returning the extended slice.
func WriteCommonHeaders(dst []byte, code int, now time.Time) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = append(dst, StatusLine(code)...)
	dst = append(dst, "\r\n"...)
	dst = append(dst, "Server: "...)
	dst = append(dst, ServerProduct...)
	dst = append(dst, "\r\n"...)
	dst = append(dst, "Date: "...)
	dst = append(dst, now.UTC().Format(time.RFC1123)...)
	dst = append(dst, "\r\n"...)
	dst = append(dst, "Access-Control-Allow-Origin: *\r\n"...)
	return dst
}

// WriteHeaderLine appends "<key>: <val>\r\n".
func WriteHeaderLine(dst []byte, key, val string) []byte {
	dst = append(dst, key...)
	dst = append(dst, ": "...)
	dst = append(dst, val...)
	dst = append(dst, "\r\n"...)
	return dst
}

// errorTemplate is the embedded HTML template (spec §4.6). A bundled asset
// loader is out of scope here (spec §1 treats embedded-asset lookup as an
// external collaborator); this is the synthesized-fallback branch, used
// unconditionally by this module.
const errorTemplate = "<html><head><title>%%ERRORCODE%%</title></head>" +
	"<body><h1>%%ERRORCODE%%</h1><p>%%MESSAGE%%</p><pre>%%BODY%%</pre></body></html>"

// RenderErrorPage substitutes the embedded template's placeholders.
func RenderErrorPage(code int, message string) []byte {
	page := errorTemplate
	page = strings.ReplaceAll(page, "%%ERRORCODE%%", strconv.Itoa(code))
	page = strings.ReplaceAll(page, "%%MESSAGE%%", message)
	page = strings.ReplaceAll(page, "%%BODY%%", "")
	return []byte(page)
}
