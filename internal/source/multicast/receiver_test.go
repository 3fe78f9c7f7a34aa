package multicast

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(Config{Group: "10.0.0.1", Port: 5000})
	assert.Error(t, err)
	_, err = Open(Config{Group: "not an address", Port: 5000})
	assert.Error(t, err)
	_, err = Open(Config{Group: "239.1.1.1", Port: 0})
	assert.Error(t, err)
}

func TestReceiver_Loopback(t *testing.T) {
	lo := loopback(t)
	r, err := Open(Config{Group: "239.255.77.1", Port: 47123, Interface: lo.Name})
	if err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}
	defer r.Close()

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, out) }()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	pc := ipv4.NewPacketConn(conn)
	require.NoError(t, pc.SetMulticastInterface(lo))
	require.NoError(t, pc.SetMulticastLoopback(true))

	dst := &net.UDPAddr{IP: net.ParseIP("239.255.77.1"), Port: 47123}
	want := []byte{0x01, 0x08, 0xc0, 0x00}
	received := false
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline) && !received; {
		if _, err := pc.WriteTo(want, nil, dst); err != nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
		received = len(out.Bytes()) > 0
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("receiver did not stop")
	}
	if !received {
		t.Skip("multicast loopback not delivered on this host")
	}
	assert.Equal(t, want, out.Bytes()[:len(want)])
}

func loopback(t *testing.T) *net.Interface {
	t.Helper()
	ifs, err := net.Interfaces()
	require.NoError(t, err)
	for i := range ifs {
		if ifs[i].Flags&net.FlagLoopback != 0 && ifs[i].Flags&net.FlagUp != 0 {
			return &ifs[i]
		}
	}
	t.Skip("no loopback interface")
	return nil
}
