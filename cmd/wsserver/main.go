// Command wsserver is a minimal wiring example: a Router dispatching a
// couple of HTTP routes and one WebSocket endpoint (/ws/echo), serving
// static files from ./public, behind the epoll event loop in package
// wsserver. The WebSocket handler only logs connects, messages and
// disconnects; it sends nothing back to the client.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/s00inx/wsconn/httpmsg"
	"github.com/s00inx/wsconn/router"
	"github.com/s00inx/wsconn/wsserver"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	staticDir := flag.String("static", "./public", "static file root")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	r := router.New(
		router.WithStaticPath(*staticDir),
		router.WithStatsDocument(livestatsJS),
	)

	r.Route(httpmsg.VerbGet, "/", func(c *router.Context) (*httpmsg.Response, error) {
		return c.Text("wsconn is running")
	})

	r.Route(httpmsg.VerbGet, "/echo/:word", func(c *router.Context) (*httpmsg.Response, error) {
		return c.Text(c.Param("word"))
	})

	r.RouteWebSocket("/ws/echo", &echoHandler{log: log})
	r.AllowCrossOrigin("/ws/echo")

	srv := wsserver.New(r, log)
	log.Info("listening", "addr", *addr)
	if err := srv.ListenAndServe(*addr); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

const livestatsJS = `document.title = "wsconn live";`

type echoHandler struct {
	log *slog.Logger
}

func (h *echoHandler) OnConnect(peerAddr string) {
	h.log.Info("ws connect", "peer", peerAddr)
}

func (h *echoHandler) OnText(peerAddr string, msg string) {
	h.log.Info("ws text", "peer", peerAddr, "msg", msg)
}

func (h *echoHandler) OnBinary(peerAddr string, msg []byte) {
	h.log.Info("ws binary", "peer", peerAddr, "len", len(msg))
}

func (h *echoHandler) OnDisconnect(peerAddr string) {
	h.log.Info("ws disconnect", "peer", peerAddr)
}
