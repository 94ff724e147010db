package router

import (
	"fmt"

	"github.com/s00inx/wsconn/dispatch"
	"github.com/s00inx/wsconn/httpmsg"
)

// Router is a sample dispatch.Dispatcher built on the radix tree: route
// registration per verb, one static root, one stats document, a
// per-URI cross-origin allow-list, and a WebSocket handler registry
// keyed by URI. It is not required by the protocol state machine — it
// exists to exercise dispatch.Dispatcher end to end.
type Router struct {
	trees       map[httpmsg.Verb]*node
	wsHandlers  map[string]dispatch.WebSocketHandler
	crossOrigin map[string]bool
	staticPath  string
	statsDoc    string
}

// NewRouter returns an empty Router with no options applied. New applies
// the With* options (static root, stats document); WebSocket routes are
// added with RouteWebSocket.
func NewRouter() *Router {
	return &Router{
		trees:       make(map[httpmsg.Verb]*node),
		wsHandlers:  make(map[string]dispatch.WebSocketHandler),
		crossOrigin: make(map[string]bool),
	}
}

// Option configures a Router at construction time.
type Option func(*Router)

func WithStaticPath(root string) Option {
	return func(r *Router) { r.staticPath = root }
}

func WithStatsDocument(uri string) Option {
	return func(r *Router) { r.statsDoc = uri }
}

// New builds a Router with the given options applied.
func New(opts ...Option) *Router {
	r := NewRouter()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route registers h to answer verb requests to path (supporting ":name"
// params, e.g. "/users/:id").
func (r *Router) Route(verb httpmsg.Verb, path string, h HandlerFunc) {
	t, ok := r.trees[verb]
	if !ok {
		root := newRoot()
		t = &root
		r.trees[verb] = t
	}
	t.insert(path, h)
}

// RouteWebSocket registers h as the WebSocket handler for uri.
func (r *Router) RouteWebSocket(uri string, h dispatch.WebSocketHandler) {
	r.wsHandlers[uri] = h
}

// AllowCrossOrigin marks uri (matched exactly) as allowing cross-origin
// WebSocket handshakes, as reported by AllowsCrossOrigin.
func (r *Router) AllowCrossOrigin(uri string) {
	r.crossOrigin[uri] = true
}

// Handle implements dispatch.Dispatcher. No matching route returns
// (nil, nil) so the Connection falls through to static-file serving
// before rendering its own 404 (dispatch.Dispatcher's documented contract).
func (r *Router) Handle(req *httpmsg.Request) (*httpmsg.Response, error) {
	t, ok := r.trees[req.Verb]
	if !ok {
		return nil, nil
	}
	var params []routeParam
	h := t.match(req.URI, &params)
	if h == nil {
		return nil, nil
	}
	c := &Context{Req: req, params: params}
	resp, err := h(c)
	if err != nil {
		return nil, fmt.Errorf("router: handler for %s: %w", req.URI, err)
	}
	return resp, nil
}

// WebSocketHandler implements dispatch.Dispatcher.
func (r *Router) WebSocketHandler(uri string) dispatch.WebSocketHandler {
	return r.wsHandlers[uri]
}

// AllowsCrossOrigin implements dispatch.Dispatcher.
func (r *Router) AllowsCrossOrigin(uri string) bool {
	return r.crossOrigin[uri]
}

// StaticPath implements dispatch.Dispatcher.
func (r *Router) StaticPath() string { return r.staticPath }

// StatsDocument implements dispatch.Dispatcher.
func (r *Router) StatsDocument() string { return r.statsDoc }
