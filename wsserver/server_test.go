package wsserver

import (
	"syscall"
	"testing"
)

func TestPeerAddrString(t *testing.T) {
	sa := &syscall.SockaddrInet4{Port: 8080, Addr: [4]byte{127, 0, 0, 1}}
	got := peerAddrString(sa)
	want := "127.0.0.1:8080"
	if got != want {
		t.Fatalf("peerAddrString = %q, want %q", got, want)
	}
}

func TestPeerAddrStringUnknownFamily(t *testing.T) {
	got := peerAddrString(&syscall.SockaddrUnix{Name: "/tmp/sock"})
	if got != "unknown" {
		t.Fatalf("peerAddrString = %q, want unknown", got)
	}
}

func TestListenSocketBindsEphemeralPort(t *testing.T) {
	fd, err := listenSocket("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listenSocket: %v", err)
	}
	defer syscall.Close(fd)

	sa, err := syscall.Getsockname(fd)
	if err != nil {
		t.Fatalf("Getsockname: %v", err)
	}
	if _, ok := sa.(*syscall.SockaddrInet4); !ok {
		t.Fatalf("unexpected sockaddr type %T", sa)
	}
}
