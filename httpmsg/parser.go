package httpmsg

import (
	"bytes"
	"errors"
)

// MaxHeadersSize bounds header-parse size before the blank-line terminator
// is found (spec §4.3).
const MaxHeadersSize = 64 << 10

// MaxContentLength rejects a declared body larger than the output buffer
// could ever hold (spec §4.3: values exceeding MaxBufferSize => 400).
const MaxContentLength = 16 << 20

var (
	// ErrIncomplete means the blank-line terminator hasn't arrived yet;
	// the caller should wait for more bytes.
	ErrIncomplete = errors.New("httpmsg: headers incomplete")
	// ErrHeadersTooBig means MaxHeadersSize bytes arrived without a
	// terminator (spec: 501 "Headers too big").
	ErrHeadersTooBig = errors.New("httpmsg: headers too big")
	// ErrMalformed covers a bad request line or header line (spec: 400).
	ErrMalformed = errors.New("httpmsg: malformed request")
	// ErrUnsupportedVersion means the HTTP version wasn't HTTP/1.1 (spec: 501).
	ErrUnsupportedVersion = errors.New("httpmsg: unsupported HTTP version")
)

var headerTerminator = []byte("\r\n\r\n")

// FindHeadersEnd scans buf for the CRLFCRLF terminator. It returns the
// index just past it, or ErrIncomplete/ErrHeadersTooBig.
func FindHeadersEnd(buf []byte) (int, error) {
	if idx := bytes.Index(buf, headerTerminator); idx != -1 {
		return idx + len(headerTerminator), nil
	}
	if len(buf) >= MaxHeadersSize {
		return 0, ErrHeadersTooBig
	}
	return 0, ErrIncomplete
}

// Parse parses [0, len(buf)) — which must already end just past the blank
// line found by FindHeadersEnd — into a Request. peerAddr is stamped onto
// the result; it isn't derivable from the bytes themselves.
func Parse(buf []byte, peerAddr string) (*Request, error) {
	crs := 0

	sp := bytes.IndexByte(buf[crs:], ' ')
	if sp == -1 {
		return nil, ErrMalformed
	}
	verbTok := string(buf[crs : crs+sp])
	crs += sp + 1

	sp = bytes.IndexByte(buf[crs:], ' ')
	if sp == -1 {
		return nil, ErrMalformed
	}
	uri := string(buf[crs : crs+sp])
	crs += sp + 1

	nl := bytes.IndexByte(buf[crs:], '\n')
	if nl == -1 {
		return nil, ErrMalformed
	}
	lineEnd := crs + nl
	if lineEnd == crs || buf[lineEnd-1] != '\r' {
		return nil, ErrMalformed
	}
	version := string(buf[crs : lineEnd-1])
	crs = lineEnd + 1

	if version != "HTTP/1.1" {
		return nil, ErrUnsupportedVersion
	}

	verb := parseVerb(verbTok)
	if verb == VerbUnknown {
		return nil, ErrMalformed
	}

	req := &Request{
		PeerAddr: peerAddr,
		Verb:     verb,
		URI:      uri,
		Header:   make(Header, 8),
	}

	for {
		if crs+1 >= len(buf) {
			return nil, ErrMalformed
		}
		if buf[crs] == '\r' && buf[crs+1] == '\n' {
			crs += 2
			break
		}

		lf := bytes.IndexByte(buf[crs:], '\n')
		if lf == -1 {
			return nil, ErrMalformed
		}
		lf += crs
		if lf == crs || buf[lf-1] != '\r' {
			return nil, ErrMalformed
		}
		lineEnd := lf - 1

		colon := bytes.IndexByte(buf[crs:lineEnd], ':')
		if colon == -1 {
			return nil, ErrMalformed
		}
		colon += crs

		key := string(buf[crs:colon])
		valStart := colon + 1
		for valStart < lineEnd && buf[valStart] == ' ' {
			valStart++
		}
		val := string(buf[valStart:lineEnd])
		req.Header.Set(key, val)

		crs = lf + 1
	}

	if req.IsUpgrade() && req.Verb != VerbGet {
		return nil, ErrMalformed
	}

	if cl := req.Header.Get("Content-Length"); cl != "" {
		n, ok := parseDecimal(cl)
		if !ok || n > MaxContentLength {
			return nil, ErrMalformed
		}
		req.ContentLength = n
	}

	req.Host = req.Header.Get("Host")
	req.Origin = req.Header.Get("Origin")
	req.WSKey = req.Header.Get("Sec-WebSocket-Key")
	req.WSKey1 = hixieKeyValue(req.Header.Get("Sec-WebSocket-Key1"))
	req.WSKey2 = hixieKeyValue(req.Header.Get("Sec-WebSocket-Key2"))

	return req, nil
}

func parseDecimal(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// hixieKeyValue implements the Hixie-76 key-extraction algorithm (spec
// §4.3, P5): accumulate decimal digits into an integer, count spaces, then
// divide. Zero spaces yields 0.
func hixieKeyValue(s string) uint32 {
	var value uint64
	var spaces uint64
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			value = value*10 + uint64(c-'0')
		case c == ' ':
			spaces++
		}
	}
	if spaces == 0 {
		return 0
	}
	return uint32(value / spaces)
}
