// Package discovery lets device units find the coordination server on the
// local network without configuration. The exchange is a fixed two-string
// UDP handshake; the strings are burned into shipped firmware and must
// never change.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPort is the UDP port the responder listens on.
	DefaultPort = 8888

	// ProbeMessage is broadcast by devices looking for a server.
	ProbeMessage = "POKER_TIMER_DISCOVERY"

	// ReplyMessage is what the server answers with.
	ReplyMessage = "POKER_TIMER_SERVER"

	// replyGap separates the two copies of the reply. UDP on a busy casino
	// WLAN drops datagrams; the duplicate makes the handshake survive one
	// loss.
	replyGap = 100 * time.Millisecond
)

// Responder answers discovery probes. One per server process.
type Responder struct {
	port int
	log  zerolog.Logger

	conn *net.UDPConn
	done chan struct{}
}

// NewResponder creates a responder on the given UDP port. Zero means
// DefaultPort.
func NewResponder(port int, log zerolog.Logger) *Responder {
	if port == 0 {
		port = DefaultPort
	}
	return &Responder{port: port, log: log}
}

// Start binds the UDP socket and begins answering probes.
func (r *Responder) Start() error {
	addr := &net.UDPAddr{Port: r.port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("binding discovery port %d: %w", r.port, err)
	}
	r.conn = conn
	r.done = make(chan struct{})

	r.log.Info().Int("port", r.port).Msg("discovery responder listening")
	go r.serve()
	return nil
}

// Stop closes the socket and waits for the serve loop to exit. Safe to call
// without a prior Start.
func (r *Responder) Stop() {
	if r.conn == nil {
		return
	}
	_ = r.conn.Close()
	<-r.done
	r.conn = nil
}

func (r *Responder) serve() {
	defer close(r.done)

	buf := make([]byte, 256)
	for {
		n, peer, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			// Closed socket means shutdown.
			return
		}
		if string(buf[:n]) != ProbeMessage {
			continue
		}

		r.log.Debug().Str("peer", peer.String()).Msg("discovery probe")
		if _, err := r.conn.WriteToUDP([]byte(ReplyMessage), peer); err != nil {
			r.log.Warn().Err(err).Str("peer", peer.String()).Msg("discovery reply failed")
			continue
		}
		time.Sleep(replyGap)
		_, _ = r.conn.WriteToUDP([]byte(ReplyMessage), peer)
	}
}

// Probe broadcasts a discovery request and returns the address of the first
// server that answers, as host:port of its UDP endpoint.
func Probe(ctx context.Context, port int, timeout time.Duration, log zerolog.Logger) (string, error) {
	if port == 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return "", fmt.Errorf("opening probe socket: %w", err)
	}
	defer conn.Close()

	broadcast := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	if _, err := conn.WriteToUDP([]byte(ProbeMessage), broadcast); err != nil {
		return "", fmt.Errorf("broadcasting probe: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("setting probe deadline: %w", err)
	}

	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			return "", fmt.Errorf("waiting for discovery reply: %w", err)
		}
		if string(buf[:n]) != ReplyMessage {
			continue
		}
		log.Info().Str("server", peer.String()).Msg("server discovered")
		return net.JoinHostPort(peer.IP.String(), strconv.Itoa(peer.Port)), nil
	}
}

// ProbeAddr is like Probe but aimed at a specific host instead of the
// broadcast address, mainly for tests and wired setups.
func ProbeAddr(ctx context.Context, addr string, timeout time.Duration, log zerolog.Logger) (string, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	target, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return "", fmt.Errorf("opening probe socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP([]byte(ProbeMessage), target); err != nil {
		return "", fmt.Errorf("sending probe: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("setting probe deadline: %w", err)
	}

	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			return "", fmt.Errorf("waiting for discovery reply: %w", err)
		}
		if string(buf[:n]) != ReplyMessage {
			continue
		}
		log.Info().Str("server", peer.String()).Msg("server discovered")
		return net.JoinHostPort(peer.IP.String(), strconv.Itoa(peer.Port)), nil
	}
}
