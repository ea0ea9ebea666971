package transport

import (
	"context"
	"testing"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// fakeTransport 按协议编号匹配地址
type fakeTransport struct {
	code   int
	closed bool
}

func (f *fakeTransport) Dial(context.Context, ma.Multiaddr, types.NodeID) (interfaces.CapableConn, error) {
	return nil, nil
}
func (f *fakeTransport) CanDial(addr ma.Multiaddr) bool {
	_, err := addr.ValueForProtocol(f.code)
	return err == nil
}
func (f *fakeTransport) Listen(ma.Multiaddr) (interfaces.Listener, error) { return nil, nil }
func (f *fakeTransport) Protocols() []int                                 { return []int{f.code} }
func (f *fakeTransport) Close() error                                     { f.closed = true; return nil }

// TestRegistry_ForAddr 按地址选择传输
func TestRegistry_ForAddr(t *testing.T) {
	udp := &fakeTransport{code: ma.P_UDP}
	tcp := &fakeTransport{code: ma.P_TCP}
	r := NewRegistry(udp, tcp, nil)

	got, err := r.ForAddr(ma.StringCast("/ip4/1.2.3.4/tcp/1"))
	require.NoError(t, err)
	assert.Same(t, tcp, got)

	got, err = r.ForAddr(ma.StringCast("/ip4/1.2.3.4/udp/1/quic-v1"))
	require.NoError(t, err)
	assert.Same(t, udp, got)

	_, err = r.ForAddr(ma.StringCast("/ip4/1.2.3.4/sctp/1"))
	assert.ErrorIs(t, err, ErrNoTransport)
	assert.Len(t, r.Transports(), 2)

	require.NoError(t, r.Close())
	assert.True(t, udp.closed)
	assert.True(t, tcp.closed)
}
