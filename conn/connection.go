// Package conn implements the per-connection protocol state machine: the
// object that owns one accepted TCP socket and drives it from first bytes
// through header parsing, protocol upgrade, response emission, and
// full-duplex WebSocket framing, until close (spec §1-§4).
package conn

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/s00inx/wsconn/dispatch"
	"github.com/s00inx/wsconn/httpmsg"
	"github.com/s00inx/wsconn/staticfile"
)

// ReadWriteBufferSize is the chunk size for both socket reads and
// static-file streaming (spec §4.5, §6 Constants).
const ReadWriteBufferSize = 16 << 10

// ErrClosed is returned by Write once the Connection has closed.
var ErrClosed = errors.New("wsconn: connection closed")

// Host is the non-owning back-pointer to the event-loop host (the Server).
// The Server outlives every Connection; Connection never holds an owning
// reference back to it (spec §9).
type Host interface {
	SubscribeWriteEvents(c *Connection) bool
	UnsubscribeWriteEvents(c *Connection) bool
}

// State is one of the five protocol states (spec §4.4).
type State uint8

const (
	ReadingHeaders State = iota
	BufferingPostData
	ReadingWebSocketKey3
	HandlingHixieWebSocket
	HandlingHybiWebSocket
)

func (s State) String() string {
	switch s {
	case ReadingHeaders:
		return "ReadingHeaders"
	case BufferingPostData:
		return "BufferingPostData"
	case ReadingWebSocketKey3:
		return "ReadingWebSocketKey3"
	case HandlingHixieWebSocket:
		return "HandlingHixieWebSocket"
	case HandlingHybiWebSocket:
		return "HandlingHybiWebSocket"
	default:
		return "Unknown"
	}
}

// Connection owns one accepted socket. OnReadable, OnWritable and Close
// assert exclusive entry via inFlight — Go has no fixed event-loop thread to
// pin to, but the Server's one-shot readiness re-arming (wsserver/server.go)
// already guarantees a single goroutine drives a given fd at a time; this
// flag turns any violation of that into a loud panic rather than silent
// buffer corruption. Write, SendText, SendBinary and the read-only accessors
// do not check inFlight.
type Connection struct {
	fd       int
	peerAddr string
	host     Host
	dispatch dispatch.Dispatcher
	log      *slog.Logger

	state  State
	in     buffer
	out    buffer

	closed             bool
	sendErrorFlag      bool
	closeWhenEmptyFlag bool
	writeSubscribed    bool
	userClosed         bool

	bytesSent uint64
	bytesRecv uint64
	createdAt time.Time

	wsHandler dispatch.WebSocketHandler

	pendingReq  *httpmsg.Request
	bodyWant    int
	bodyGot     []byte

	hixieKey0, hixieKey1 uint32
	hixieExtra           string

	inFlight atomic.Bool
}

// New creates a Connection over an already-accepted, already-nonblocking
// socket descriptor. host and dispatcher must be non-nil.
func New(fd int, peerAddr string, host Host, dispatcher dispatch.Dispatcher, log *slog.Logger) *Connection {
	if log == nil {
		log = slog.Default()
	}
	return &Connection{
		fd:        fd,
		peerAddr:  peerAddr,
		host:      host,
		dispatch:  dispatcher,
		log:       log,
		state:     ReadingHeaders,
		createdAt: time.Now(),
	}
}

func (c *Connection) enter() func() {
	if !c.inFlight.CompareAndSwap(false, true) {
		panic("wsconn: Connection re-entered concurrently")
	}
	return func() { c.inFlight.Store(false) }
}

// State, Closed, PeerAddr, FD, BytesSent, BytesRecv, CreatedAt are the
// read-only views §3's data model exposes to the host/tests.
func (c *Connection) State() State         { return c.state }
func (c *Connection) Closed() bool         { return c.closed }
func (c *Connection) PeerAddr() string     { return c.peerAddr }
func (c *Connection) FD() int              { return c.fd }
func (c *Connection) BytesSent() uint64    { return c.bytesSent }
func (c *Connection) BytesRecv() uint64    { return c.bytesRecv }
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// OnReadable reads once, non-blockingly, and drives the state machine over
// whatever arrived (spec §6 on_readable).
func (c *Connection) OnReadable() {
	done := c.enter()
	defer done()
	if c.closed {
		return
	}

	chunk := make([]byte, ReadWriteBufferSize)
	n, err := syscall.Read(c.fd, chunk)
	if n > 0 {
		c.bytesRecv += uint64(n)
		if aerr := c.in.append(chunk[:n], MaxBufferSize); aerr != nil {
			c.closeInternal()
			return
		}
		c.handleNewData()
		return
	}
	if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
		return
	}
	c.closeInternal()
}

// OnWritable drains whatever is buffered (spec §6 on_writable).
func (c *Connection) OnWritable() {
	done := c.enter()
	defer done()
	if c.closed {
		return
	}
	c.flush()
}

// Close is the user-initiated, idempotent close (spec §5).
func (c *Connection) Close() {
	done := c.enter()
	defer done()
	c.userClosed = true
	c.closeInternal()
}

// handleNewData dispatches newly-arrived bytes to the current state's
// handler, looping while a handler makes progress (spec §4.4 transition
// table). Each handler returns false when it needs more bytes than in.Bytes()
// currently holds.
func (c *Connection) handleNewData() {
	for !c.closed {
		var progressed bool
		switch c.state {
		case ReadingHeaders:
			progressed = c.stepReadingHeaders()
		case BufferingPostData:
			progressed = c.stepBufferingPostData()
		case ReadingWebSocketKey3:
			progressed = c.stepReadingWebSocketKey3()
		case HandlingHixieWebSocket:
			progressed = c.stepHixieFrame()
		case HandlingHybiWebSocket:
			progressed = c.stepHybiFrame()
		}
		if !progressed {
			return
		}
	}
}

func (c *Connection) stepReadingHeaders() bool {
	end, err := httpmsg.FindHeadersEnd(c.in.Bytes())
	if err == httpmsg.ErrIncomplete {
		return false
	}
	if err == httpmsg.ErrHeadersTooBig {
		c.sendErrorPage(501, "Headers too big")
		return false
	}

	headerBytes := append([]byte(nil), c.in.Bytes()[:end]...)
	req, perr := httpmsg.Parse(headerBytes, c.peerAddr)
	c.in.advance(end)
	if perr != nil {
		switch perr {
		case httpmsg.ErrUnsupportedVersion:
			c.sendErrorPage(501, "Unsupported HTTP version")
		default:
			c.sendErrorPage(400, "Malformed request")
		}
		return false
	}

	if req.IsUpgrade() {
		c.beginUpgrade(req)
		return !c.closed
	}

	if req.ContentLength > 0 {
		c.pendingReq = req
		c.bodyWant = req.ContentLength
		c.bodyGot = make([]byte, 0, req.ContentLength)
		c.state = BufferingPostData
		return true
	}

	c.dispatchAndRespond(req)
	return !c.closed
}

func (c *Connection) stepBufferingPostData() bool {
	need := c.bodyWant - len(c.bodyGot)
	avail := c.in.Bytes()
	if len(avail) < need {
		if len(avail) > 0 {
			c.bodyGot = append(c.bodyGot, avail...)
			c.in.advance(len(avail))
		}
		return false
	}

	c.bodyGot = append(c.bodyGot, avail[:need]...)
	c.in.advance(need)

	req := c.pendingReq
	req.Body = c.bodyGot
	c.pendingReq = nil
	c.bodyGot = nil
	c.state = ReadingHeaders

	c.dispatchAndRespond(req)
	return !c.closed
}

func (c *Connection) beginUpgrade(req *httpmsg.Request) {
	switch req.WebSocketVersion() {
	case 0:
		c.beginHixieUpgrade(req)
	case 8, 13:
		c.beginHybiUpgrade(req)
	default:
		c.sendErrorPage(400, "unsupported Sec-WebSocket-Version")
	}
}

func (c *Connection) beginHixieUpgrade(req *httpmsg.Request) {
	handler := c.dispatch.WebSocketHandler(req.URI)
	if handler == nil {
		c.sendErrorPage(404, "no websocket handler for "+req.URI)
		return
	}
	c.wsHandler = handler
	c.hixieKey0 = req.WSKey1
	c.hixieKey1 = req.WSKey2
	c.hixieExtra = "Sec-WebSocket-Origin: " + req.Origin + "\r\n" +
		"Sec-WebSocket-Location: ws://" + req.Host + req.URI + "\r\n"
	c.state = ReadingWebSocketKey3
}

func (c *Connection) beginHybiUpgrade(req *httpmsg.Request) {
	handler := c.dispatch.WebSocketHandler(req.URI)
	if handler == nil {
		c.sendErrorPage(404, "no websocket handler for "+req.URI)
		return
	}

	accept := hybiAcceptKey(req.WSKey)
	resp := make([]byte, 0, 128)
	resp = append(resp, "HTTP/1.1 101 Switching Protocols\r\n"...)
	resp = append(resp, "Upgrade: websocket\r\n"...)
	resp = append(resp, "Connection: Upgrade\r\n"...)
	resp = append(resp, "Sec-WebSocket-Accept: "...)
	resp = append(resp, accept...)
	resp = append(resp, "\r\n\r\n"...)

	if err := c.Write(resp, true); err != nil {
		return
	}

	c.wsHandler = handler
	c.state = HandlingHybiWebSocket
	c.wsHandler.OnConnect(c.peerAddr)
}

func (c *Connection) stepReadingWebSocketKey3() bool {
	avail := c.in.Bytes()
	if len(avail) < 8 {
		return false
	}
	var key3 [8]byte
	copy(key3[:], avail[:8])
	c.in.advance(8)

	digest := hixieDigest(c.hixieKey0, c.hixieKey1, key3[:])

	resp := make([]byte, 0, 160)
	resp = append(resp, "HTTP/1.1 101 WebSocket Protocol Handshake\r\n"...)
	resp = append(resp, "Upgrade: websocket\r\n"...)
	resp = append(resp, "Connection: Upgrade\r\n"...)
	resp = append(resp, c.hixieExtra...)
	resp = append(resp, "\r\n"...)
	resp = append(resp, digest[:]...)

	if err := c.Write(resp, true); err != nil {
		return false
	}

	c.state = HandlingHixieWebSocket
	c.wsHandler.OnConnect(c.peerAddr)
	return !c.closed
}

func (c *Connection) stepHixieFrame() bool {
	avail := c.in.Bytes()
	if len(avail) == 0 {
		return false
	}
	if avail[0] != 0x00 {
		c.closeInternal()
		return false
	}
	end := indexByte(avail[1:], 0xFF)
	if end == -1 {
		return false
	}
	msg := append([]byte(nil), avail[1:1+end]...)
	c.in.advance(1 + end + 1)
	c.wsHandler.OnText(c.peerAddr, string(msg))
	return !c.closed
}

func (c *Connection) stepHybiFrame() bool {
	ft, payload, n, err := decodeHybiFrame(c.in.Bytes())
	if err != nil {
		c.closeInternal()
		return false
	}
	if n == 0 {
		return false
	}
	msg := append([]byte(nil), payload...)
	c.in.advance(n)

	switch ft {
	case FrameText:
		c.wsHandler.OnText(c.peerAddr, string(msg))
	case FrameBinary:
		c.wsHandler.OnBinary(c.peerAddr, msg)
	case FramePing:
		c.sendHybiFrame(FramePong, msg)
	case FramePong:
		// no application callback for pong (spec §4.4)
	case FrameClose:
		c.closeInternal()
		return false
	}
	return !c.closed
}

func indexByte(b []byte, target byte) int {
	for i, c := range b {
		if c == target {
			return i
		}
	}
	return -1
}

func (c *Connection) sendHybiFrame(ft FrameType, payload []byte) error {
	return c.Write(encodeHybiFrame(ft, payload), true)
}

// SendText delivers an application text message over an upgraded
// connection, Hybi-encoded or Hixie-framed depending on which dialect this
// Connection negotiated.
func (c *Connection) SendText(msg string) error {
	switch c.state {
	case HandlingHybiWebSocket:
		return c.sendHybiFrame(FrameText, []byte(msg))
	case HandlingHixieWebSocket:
		frame := make([]byte, 0, len(msg)+2)
		frame = append(frame, 0x00)
		frame = append(frame, msg...)
		frame = append(frame, 0xFF)
		return c.Write(frame, true)
	default:
		return errors.New("wsconn: SendText on a non-websocket connection")
	}
}

// SendBinary delivers a binary message. Only the Hybi dialect supports it.
func (c *Connection) SendBinary(msg []byte) error {
	if c.state != HandlingHybiWebSocket {
		return errors.New("wsconn: SendBinary requires a hybi connection")
	}
	return c.sendHybiFrame(FrameBinary, msg)
}

func (c *Connection) dispatchAndRespond(req *httpmsg.Request) {
	if req.URI == "/_livestats.js" {
		c.writeResponse(&httpmsg.Response{
			Code:        200,
			ContentType: "application/javascript",
			Body:        []byte(c.dispatch.StatsDocument()),
			KeepAlive:   true,
		})
		return
	}

	resp, err := c.handleWithRecover(req)
	if err != nil {
		c.sendErrorPage(500, err.Error())
		return
	}
	if resp == nil {
		c.serveStaticOrNotFound(req)
		return
	}

	c.writeResponse(resp)
	if !resp.KeepAlive {
		c.closeWhenEmpty()
	}
}

func (c *Connection) handleWithRecover(req *httpmsg.Request) (resp *httpmsg.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.dispatch.Handle(req)
}

func (c *Connection) serveStaticOrNotFound(req *httpmsg.Request) {
	root := c.dispatch.StaticPath()
	if root == "" {
		c.sendErrorPage(404, "not found")
		return
	}
	if err := staticfile.Serve(c, req, root); err != nil {
		if errors.Is(err, staticfile.ErrNotFound) {
			c.sendErrorPage(404, "not found")
			return
		}
		c.log.Debug("static file serve error", "err", err, "peer", c.peerAddr)
		if errors.Is(err, staticfile.ErrAborted) {
			c.closeWhenEmpty()
		}
		return
	}
	// Non-goal: no keep-alive across mixed static/dynamic handlers (spec §1).
	// Simplification: static responses always close after draining.
	c.closeWhenEmpty()
}

func (c *Connection) writeResponse(resp *httpmsg.Response) {
	dst := make([]byte, 0, 256+len(resp.Body))
	dst = httpmsg.WriteCommonHeaders(dst, resp.Code, time.Now())
	if resp.ContentType != "" {
		dst = httpmsg.WriteHeaderLine(dst, "Content-Type", resp.ContentType)
	}
	dst = httpmsg.WriteHeaderLine(dst, "Content-Length", strconv.Itoa(len(resp.Body)))
	if resp.KeepAlive {
		dst = httpmsg.WriteHeaderLine(dst, "Connection", "keep-alive")
	} else {
		dst = httpmsg.WriteHeaderLine(dst, "Connection", "close")
	}
	for k, v := range resp.Header {
		dst = httpmsg.WriteHeaderLine(dst, k, v)
	}
	dst = append(dst, "\r\n"...)
	dst = append(dst, resp.Body...)
	c.Write(dst, true)
}

func (c *Connection) sendErrorPage(code int, message string) {
	body := httpmsg.RenderErrorPage(code, message)
	dst := make([]byte, 0, 256+len(body))
	dst = httpmsg.WriteCommonHeaders(dst, code, time.Now())
	dst = httpmsg.WriteHeaderLine(dst, "Content-Type", "text/html")
	dst = httpmsg.WriteHeaderLine(dst, "Content-Length", strconv.Itoa(len(body)))
	dst = httpmsg.WriteHeaderLine(dst, "Connection", "close")
	dst = append(dst, "\r\n"...)
	dst = append(dst, body...)
	c.Write(dst, true)
	c.closeWhenEmpty()
}

// Write appends data to the output buffer, honoring the fast-path direct
// send described in spec §4.1: when out is empty and flush is requested,
// try to hand the socket the whole payload before buffering any remainder.
func (c *Connection) Write(data []byte, flush bool) error {
	if c.closed {
		return ErrClosed
	}

	if c.out.Len() == 0 && flush && len(data) > 0 {
		n, err := syscall.Write(c.fd, data)
		if n > 0 {
			c.bytesSent += uint64(n)
		}
		if err != nil && err != syscall.EAGAIN && err != syscall.EWOULDBLOCK {
			c.sendErrorFlag = true
			c.closeInternal()
			return err
		}
		if n == len(data) {
			return nil
		}
		if n > 0 {
			data = data[n:]
		}
	}

	if err := c.out.append(data, MaxBufferSize); err != nil {
		c.closeInternal()
		return err
	}

	if flush {
		return c.flush()
	}
	c.reconcileWriteSubscription()
	return nil
}

func (c *Connection) flush() error {
	if c.closed {
		return ErrClosed
	}
	for c.out.Len() > 0 {
		n, err := syscall.Write(c.fd, c.out.Bytes())
		if n > 0 {
			c.bytesSent += uint64(n)
			c.out.advance(n)
		}
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				break
			}
			c.sendErrorFlag = true
			c.closeInternal()
			return err
		}
		if n == 0 {
			break
		}
	}
	c.reconcileWriteSubscription()
	if c.out.Len() == 0 && c.closeWhenEmptyFlag {
		c.closeInternal()
	}
	return nil
}

func (c *Connection) reconcileWriteSubscription() {
	if c.closed {
		return
	}
	want := c.out.Len() > 0
	if want == c.writeSubscribed {
		return
	}
	if want {
		c.writeSubscribed = c.host.SubscribeWriteEvents(c)
	} else {
		c.host.UnsubscribeWriteEvents(c)
		c.writeSubscribed = false
	}
}

func (c *Connection) closeWhenEmpty() {
	c.closeWhenEmptyFlag = true
	if c.out.Len() == 0 {
		c.closeInternal()
	}
}

func (c *Connection) closeInternal() {
	if c.closed {
		return
	}
	c.closed = true
	if c.writeSubscribed {
		c.host.UnsubscribeWriteEvents(c)
		c.writeSubscribed = false
	}
	if c.wsHandler != nil {
		c.wsHandler.OnDisconnect(c.peerAddr)
		c.wsHandler = nil
	}
	setLinger(c.fd)
	syscall.Shutdown(c.fd, syscall.SHUT_RDWR)
	syscall.Close(c.fd)
}

// setLinger sets SO_LINGER to 1 second (spec §6 Constants) so a close
// during an active handshake doesn't silently drop buffered bytes.
func setLinger(fd int) {
	syscall.SetsockoptLinger(fd, syscall.SOL_SOCKET, syscall.SO_LINGER, &syscall.Linger{
		Onoff:  1,
		Linger: 1,
	})
}
