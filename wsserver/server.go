// Package wsserver is the epoll event loop that owns sockets and drives
// one conn.Connection per fd, adapted from the teacher's
// server/engine/epoll.go and pool.go worker pool.
package wsserver

import (
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync/atomic"
	"syscall"

	"github.com/s00inx/wsconn/conn"
	"github.com/s00inx/wsconn/dispatch"
)

const (
	backlog   = 128
	maxEvents = 256
)

// Server listens on one TCP address and drives every accepted connection
// through the epoll-backed worker pool. It implements conn.Host.
type Server struct {
	dispatch dispatch.Dispatcher
	log      *slog.Logger

	epollFd  int
	listenFd int

	conns []atomic.Pointer[conn.Connection]
}

// New builds a Server that will dispatch accepted requests to d. Call
// ListenAndServe to start accepting.
func New(d dispatch.Dispatcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{dispatch: d, log: log}
}

// ListenAndServe binds addr ("host:port"), starts the epoll loop, and
// blocks. It returns an error only if setup fails; once the loop is
// running it never returns (EpollWait errors are logged and retried).
func (s *Server) ListenAndServe(addr string) error {
	fd, err := listenSocket(addr)
	if err != nil {
		return err
	}
	s.listenFd = fd
	defer syscall.Close(fd)

	epollFd, err := syscall.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("wsserver: EpollCreate1: %w", err)
	}
	s.epollFd = epollFd

	if err := syscall.EpollCtl(epollFd, syscall.EPOLL_CTL_ADD, fd, &syscall.EpollEvent{
		Events: syscall.EPOLLIN,
		Fd:     int32(fd),
	}); err != nil {
		return fmt.Errorf("wsserver: EpollCtl listen fd: %w", err)
	}

	var rlim syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlim)
	s.conns = make([]atomic.Pointer[conn.Connection], rlim.Cur)

	jobs := make(chan job, 4096)
	numWorkers := runtime.NumCPU()
	for i := 0; i < numWorkers; i++ {
		go s.worker(jobs)
	}

	events := make([]syscall.EpollEvent, maxEvents)
	for {
		n, err := syscall.EpollWait(epollFd, events, -1)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			s.log.Error("epoll wait failed", "err", err)
			continue
		}

		for i := 0; i < n; i++ {
			efd := int(events[i].Fd)
			if efd == fd {
				s.acceptLoop()
				continue
			}
			jobs <- job{fd: efd, writable: events[i].Events&syscall.EPOLLOUT != 0}
		}
	}
}

type job struct {
	fd       int
	writable bool
}

func (s *Server) acceptLoop() {
	for {
		nfd, sa, err := syscall.Accept(s.listenFd)
		if err != nil {
			return
		}
		syscall.SetNonblock(nfd, true)

		peerAddr := peerAddrString(sa)
		c := conn.New(nfd, peerAddr, s, s.dispatch, s.log)
		s.conns[nfd].Store(c)

		if err := syscall.EpollCtl(s.epollFd, syscall.EPOLL_CTL_ADD, nfd, &syscall.EpollEvent{
			Events: syscall.EPOLLIN | syscall.EPOLLONESHOT,
			Fd:     int32(nfd),
		}); err != nil {
			s.conns[nfd].Store(nil)
			syscall.Close(nfd)
		}
	}
}

func (s *Server) worker(jobs <-chan job) {
	for j := range jobs {
		c := s.conns[j.fd].Load()
		if c == nil {
			continue
		}

		if j.writable {
			c.OnWritable()
		} else {
			c.OnReadable()
		}

		if c.Closed() {
			s.conns[j.fd].Store(nil)
			continue
		}

		// Re-arm for reads; SubscribeWriteEvents/UnsubscribeWriteEvents
		// (called by Connection itself) layer EPOLLOUT on top as needed.
		ev := syscall.EpollEvent{
			Events: syscall.EPOLLIN | syscall.EPOLLONESHOT,
			Fd:     int32(j.fd),
		}
		syscall.EpollCtl(s.epollFd, syscall.EPOLL_CTL_MOD, j.fd, &ev)
	}
}

// SubscribeWriteEvents implements conn.Host: re-arm fd for EPOLLOUT too.
func (s *Server) SubscribeWriteEvents(c *conn.Connection) bool {
	ev := syscall.EpollEvent{
		Events: syscall.EPOLLIN | syscall.EPOLLOUT | syscall.EPOLLONESHOT,
		Fd:     int32(c.FD()),
	}
	return syscall.EpollCtl(s.epollFd, syscall.EPOLL_CTL_MOD, c.FD(), &ev) == nil
}

// UnsubscribeWriteEvents implements conn.Host: re-arm fd for read only.
func (s *Server) UnsubscribeWriteEvents(c *conn.Connection) bool {
	ev := syscall.EpollEvent{
		Events: syscall.EPOLLIN | syscall.EPOLLONESHOT,
		Fd:     int32(c.FD()),
	}
	return syscall.EpollCtl(s.epollFd, syscall.EPOLL_CTL_MOD, c.FD(), &ev) == nil
}

func listenSocket(addr string) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return -1, err
	}

	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)

	var addr4 [4]byte
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(addr4[:], ip4)
	}

	if err := syscall.Bind(fd, &syscall.SockaddrInet4{Port: tcpAddr.Port, Addr: addr4}); err != nil {
		syscall.Close(fd)
		return -1, err
	}
	if err := syscall.Listen(fd, backlog); err != nil {
		syscall.Close(fd)
		return -1, err
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return -1, err
	}
	return fd, nil
}

func peerAddrString(sa syscall.Sockaddr) string {
	sa4, ok := sa.(*syscall.SockaddrInet4)
	if !ok {
		return "unknown"
	}
	ip := net.IPv4(sa4.Addr[0], sa4.Addr[1], sa4.Addr[2], sa4.Addr[3])
	return fmt.Sprintf("%s:%d", ip.String(), sa4.Port)
}
