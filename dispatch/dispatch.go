// Package dispatch declares the collaborator interfaces the Connection
// consumes but does not implement: the page-request dispatcher and the
// WebSocket handler lookup (spec §1, §6). router.Router is one concrete
// Dispatcher; applications may supply their own.
package dispatch

import "github.com/s00inx/wsconn/httpmsg"

// Dispatcher resolves a parsed Request to a Response, or to a WebSocket
// handler for upgrade requests.
type Dispatcher interface {
	// Handle answers a non-upgrade request. A nil Response and nil error
	// means no handler matched: the Connection then tries to serve a static
	// file and renders 404 if there is none. An error is rendered as 500.
	Handle(req *httpmsg.Request) (*httpmsg.Response, error)

	// WebSocketHandler returns the handler registered for uri, or nil if
	// none is registered there.
	WebSocketHandler(uri string) WebSocketHandler

	// AllowsCrossOrigin reports whether uri accepts a WebSocket handshake
	// from a foreign Origin. conn.Connection does not call it: its Hixie
	// handshake always echoes the request's Origin as Sec-WebSocket-Origin
	// and builds Sec-WebSocket-Location from Host, whatever this returns.
	AllowsCrossOrigin(uri string) bool

	// StaticPath is the filesystem root static file requests are served
	// from. Must be non-empty (spec §6).
	StaticPath() string

	// StatsDocument backs the hard-coded /_livestats.js route (spec §6).
	StatsDocument() string
}

// WebSocketHandler is the capability interface a WebSocket-upgraded
// Connection invokes. Two callback shapes (text, binary) plus lifecycle
// (spec §9) — deliberately flat, no inheritance.
type WebSocketHandler interface {
	OnConnect(peerAddr string)
	OnText(peerAddr string, msg string)
	OnBinary(peerAddr string, msg []byte)
	OnDisconnect(peerAddr string)
}
