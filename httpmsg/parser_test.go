package httpmsg

import "testing"

func TestFindHeadersEnd(t *testing.T) {
	buf := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	end, err := FindHeadersEnd(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end != len(buf) {
		t.Fatalf("end = %d, want %d", end, len(buf))
	}
}

func TestFindHeadersEndIncomplete(t *testing.T) {
	_, err := FindHeadersEnd([]byte("GET / HTTP/1.1\r\nHost: x\r\n"))
	if err != ErrIncomplete {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
}

func TestFindHeadersEndTooBig(t *testing.T) {
	big := make([]byte, MaxHeadersSize)
	for i := range big {
		big[i] = 'a'
	}
	_, err := FindHeadersEnd(big)
	if err != ErrHeadersTooBig {
		t.Fatalf("err = %v, want ErrHeadersTooBig", err)
	}
}

func TestParsePlainGet(t *testing.T) {
	buf := []byte("GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n")
	req, err := Parse(buf, "1.2.3.4:5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Verb != VerbGet || req.URI != "/index.html" {
		t.Fatalf("got verb=%v uri=%q", req.Verb, req.URI)
	}
	if req.Host != "x" {
		t.Fatalf("host = %q", req.Host)
	}
}

func TestParseUnsupportedVersion(t *testing.T) {
	_, err := Parse([]byte("GET / HTTP/1.0\r\n\r\n"), "")
	if err != ErrUnsupportedVersion {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestParseMissingColon(t *testing.T) {
	_, err := Parse([]byte("GET / HTTP/1.1\r\nBadHeader\r\n\r\n"), "")
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseUpgradeRequiresGet(t *testing.T) {
	buf := []byte("POST / HTTP/1.1\r\nConnection: upgrade\r\nUpgrade: websocket\r\n\r\n")
	_, err := Parse(buf, "")
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseContentLength(t *testing.T) {
	buf := []byte("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\n")
	req, err := Parse(buf, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ContentLength != 5 {
		t.Fatalf("content length = %d", req.ContentLength)
	}
}

func TestHixieKeyValue(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"1 2 3", 123 / 2},    // digits "123", 2 spaces
		{"a1b2c3", 0},         // no spaces
		{"no digits at all  ", 0},
		{"7  0 0", 700 / 3},
	}
	for _, c := range cases {
		if got := hixieKeyValue(c.in); got != c.want {
			t.Errorf("hixieKeyValue(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDuplicateHeaderOverwrites(t *testing.T) {
	buf := []byte("GET / HTTP/1.1\r\nX-Foo: a\r\nX-Foo: b\r\n\r\n")
	req, err := Parse(buf, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.Header.Get("X-Foo"); got != "b" {
		t.Fatalf("X-Foo = %q, want b", got)
	}
}
