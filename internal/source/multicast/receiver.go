// Package multicast captures the GRB broadcast from a UDP multicast group
// into a growing file that the dispatcher can follow.
package multicast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/net/ipv4"

	"firestige.xyz/grbr/internal/metrics"
)

const (
	// maxDatagram is the largest UDP payload.
	maxDatagram = 65507

	readTimeout = time.Second
)

// Config contains configuration for the receiver.
type Config struct {
	Group     string // multicast group address
	Port      int
	Interface string // empty joins on the default interface
}

// Receiver joins a multicast group and copies datagram payloads, in
// arrival order, to a writer.
type Receiver struct {
	config Config
	group  net.IP
	conn   net.PacketConn
	pc     *ipv4.PacketConn
	ifi    *net.Interface
}

// Open joins the group.
func Open(cfg Config) (*Receiver, error) {
	group := net.ParseIP(cfg.Group).To4()
	if group == nil || !group.IsMulticast() {
		return nil, fmt.Errorf("%q is not an IPv4 multicast group", cfg.Group)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	var ifi *net.Interface
	if cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return nil, fmt.Errorf("interface %s: %w", cfg.Interface, err)
		}
	}

	conn, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen udp %d: %w", cfg.Port, err)
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join %s: %w", group, err)
	}
	// Other groups bound to the same port are filtered by destination.
	if err := pc.SetControlMessage(ipv4.FlagDst, true); err != nil {
		slog.Debug("destination control messages unavailable", "error", err)
	}

	slog.Info("joined multicast group", "group", group, "port", cfg.Port, "interface", cfg.Interface)
	return &Receiver{config: cfg, group: group, conn: conn, pc: pc, ifi: ifi}, nil
}

// Addr returns the local address of the socket.
func (r *Receiver) Addr() net.Addr { return r.conn.LocalAddr() }

// Run copies datagrams to w until ctx is done. It returns nil on
// cancellation.
func (r *Receiver) Run(ctx context.Context, w io.Writer) error {
	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.pc.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, cm, _, err := r.pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return fmt.Errorf("receive: %w", err)
		}
		if cm != nil && cm.Dst != nil && !cm.Dst.Equal(r.group) {
			continue
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return fmt.Errorf("write capture: %w", err)
		}
		metrics.ReceivedOctetsTotal.Add(float64(n))
	}
}

// Close leaves the group and closes the socket.
func (r *Receiver) Close() error {
	if err := r.pc.LeaveGroup(r.ifi, &net.UDPAddr{IP: r.group}); err != nil {
		slog.Debug("leave group failed", "group", r.group, "error", err)
	}
	return r.conn.Close()
}
