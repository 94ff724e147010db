package router

import "github.com/s00inx/wsconn/httpmsg"

// Context is the per-request abstraction a HandlerFunc sees, grounded on
// the teacher's router Context (getters over the parsed request, and Text/
// JSON helpers that build the response).
type Context struct {
	Req    *httpmsg.Request
	params []routeParam
}

func (c *Context) Method() httpmsg.Verb { return c.Req.Verb }
func (c *Context) URI() string          { return c.Req.URI }
func (c *Context) Header(key string) string {
	return c.Req.Header.Get(key)
}
func (c *Context) Body() []byte { return c.Req.Body }

// Param returns the captured value for a ":name" path segment, or "" if
// none was captured under that name.
func (c *Context) Param(name string) string {
	for _, p := range c.params {
		if p.Key == name {
			return p.Val
		}
	}
	return ""
}

// Text builds a 200 text/plain response in one call, the common case for
// small handlers.
func (c *Context) Text(body string) (*httpmsg.Response, error) {
	return &httpmsg.Response{Code: 200, ContentType: "text/plain", Body: []byte(body), KeepAlive: true}, nil
}

// JSON builds a response with an already-encoded JSON body.
func (c *Context) JSON(body []byte) (*httpmsg.Response, error) {
	return &httpmsg.Response{Code: 200, ContentType: "application/json", Body: body, KeepAlive: true}, nil
}
