package staticfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/s00inx/wsconn/httpmsg"
)

type captureWriter struct {
	buf bytes.Buffer
}

func (c *captureWriter) Write(data []byte, flush bool) error {
	c.buf.Write(data)
	return nil
}

func writeTempFile(t *testing.T, contents string) (dir, name string) {
	t.Helper()
	dir = t.TempDir()
	name = "asset.txt"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir, name
}

func TestServeFullFile(t *testing.T) {
	dir, name := writeTempFile(t, "hello world")
	w := &captureWriter{}
	req := &httpmsg.Request{URI: "/" + name, Header: httpmsg.Header{}}

	if err := Serve(w, req, dir); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	out := w.buf.String()
	if !bytes.Contains(w.buf.Bytes(), []byte("200 OK")) {
		t.Fatalf("expected 200 status, got: %q", out)
	}
	if !bytes.HasSuffix(w.buf.Bytes(), []byte("hello world")) {
		t.Fatalf("expected body to end with file contents, got: %q", out)
	}
}

func TestServeRange(t *testing.T) {
	dir, name := writeTempFile(t, "0123456789")
	w := &captureWriter{}
	req := &httpmsg.Request{URI: "/" + name, Header: httpmsg.Header{"Range": "bytes=2-4"}}

	if err := Serve(w, req, dir); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	out := w.buf.Bytes()
	if !bytes.Contains(out, []byte("206 Partial Content")) {
		t.Fatalf("expected 206 status, got: %q", out)
	}
	if !bytes.HasSuffix(out, []byte("234")) {
		t.Fatalf("expected body to end with '234', got: %q", out)
	}
}

func TestServeMissingFile(t *testing.T) {
	dir := t.TempDir()
	w := &captureWriter{}
	req := &httpmsg.Request{URI: "/nope.txt", Header: httpmsg.Header{}}

	if err := Serve(w, req, dir); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServeMalformedRangeWrites416(t *testing.T) {
	dir, name := writeTempFile(t, "hello")
	w := &captureWriter{}
	req := &httpmsg.Request{URI: "/" + name, Header: httpmsg.Header{"Range": "nonsense"}}

	err := Serve(w, req, dir)
	if err != ErrAborted {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if !bytes.Contains(w.buf.Bytes(), []byte("416")) {
		t.Fatalf("expected 416 in response, got: %q", w.buf.String())
	}
}

func TestServeDirectoryIsNotFound(t *testing.T) {
	dir := t.TempDir()
	w := &captureWriter{}
	req := &httpmsg.Request{URI: "/", Header: httpmsg.Header{}}

	if err := Serve(w, req, dir); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
