package router

import (
	"testing"

	"github.com/s00inx/wsconn/httpmsg"
)

func TestRouteMatch(t *testing.T) {
	r := New()
	r.Route(httpmsg.VerbGet, "/users/:id", func(c *Context) (*httpmsg.Response, error) {
		return c.Text("id=" + c.Param("id"))
	})

	req := &httpmsg.Request{Verb: httpmsg.VerbGet, URI: "/users/42", Header: httpmsg.Header{}}
	resp, err := r.Handle(req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := string(resp.Body); got != "id=42" {
		t.Fatalf("body = %q, want id=42", got)
	}
}

func TestRouteNotFound(t *testing.T) {
	r := New()
	req := &httpmsg.Request{Verb: httpmsg.VerbGet, URI: "/missing", Header: httpmsg.Header{}}
	resp, err := r.Handle(req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp != nil {
		t.Fatalf("resp = %+v, want nil so the Connection falls through to static/404", resp)
	}
}

func TestRouteStaticAndCrossOrigin(t *testing.T) {
	r := New(WithStaticPath("/var/www"), WithStatsDocument("/_livestats.js"))
	r.AllowCrossOrigin("/ws/echo")

	if r.StaticPath() != "/var/www" {
		t.Fatalf("StaticPath = %q", r.StaticPath())
	}
	if r.StatsDocument() != "/_livestats.js" {
		t.Fatalf("StatsDocument = %q", r.StatsDocument())
	}
	if !r.AllowsCrossOrigin("/ws/echo") {
		t.Fatal("expected /ws/echo to allow cross origin")
	}
	if r.AllowsCrossOrigin("/ws/other") {
		t.Fatal("expected /ws/other to not allow cross origin")
	}
}

func TestRouteMethodMismatch(t *testing.T) {
	r := New()
	r.Route(httpmsg.VerbGet, "/only-get", func(c *Context) (*httpmsg.Response, error) {
		return c.Text("ok")
	})
	req := &httpmsg.Request{Verb: httpmsg.VerbPost, URI: "/only-get", Header: httpmsg.Header{}}
	resp, err := r.Handle(req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp != nil {
		t.Fatalf("resp = %+v, want nil so the Connection falls through to static/404", resp)
	}
}
