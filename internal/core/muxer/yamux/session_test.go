package yamux

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionPair(t *testing.T) (*Session, *Session) {
	t.Helper()
	c1, c2 := net.Pipe()
	tr := New(nil)

	client, err := tr.NewSession(c1, false)
	require.NoError(t, err)
	server, err := tr.NewSession(c2, true)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

// TestSession_OpenAccept 测试打开与接受流
func TestSession_OpenAccept(t *testing.T) {
	client, server := newSessionPair(t)

	accepted := make(chan []byte, 1)
	go func() {
		s, err := server.AcceptStream()
		if err != nil {
			return
		}
		defer s.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(s, buf); err == nil {
			accepted <- buf
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = s.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case got := <-accepted:
		assert.Equal(t, []byte("hello"), got)
	case <-time.After(5 * time.Second):
		t.Fatal("stream not accepted")
	}
}

// TestSession_Close 关闭后 IsClosed 为真，AcceptStream 返回错误
func TestSession_Close(t *testing.T) {
	client, server := newSessionPair(t)

	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())

	_, err := client.AcceptStream()
	assert.Error(t, err)

	select {
	case <-server.CloseChan():
	case <-time.After(5 * time.Second):
		t.Fatal("remote session not closed")
	}
}

// TestTransport_ID 协议标识
func TestTransport_ID(t *testing.T) {
	assert.Equal(t, "/yamux/1.0.0", string(New(nil).ID()))
}
