package upgrader

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/muxer/yamux"
	"github.com/dep2p/go-bootnode/internal/core/security/noise"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var (
	serverAddr = ma.StringCast("/ip4/127.0.0.1/tcp/39000")
	clientAddr = ma.StringCast("/ip4/127.0.0.1/tcp/50000")
)

func newUpgrader(t *testing.T, id *identity.Identity, g *gater.Gater) *Upgrader {
	t.Helper()
	sec, err := noise.New(id)
	require.NoError(t, err)
	return New(sec, yamux.New(nil), g, 5*time.Second)
}

type upgradeResult struct {
	conn interfaces.CapableConn
	err  error
}

// upgradePair 在 net.Pipe 两端并发执行入站与出站升级
func upgradePair(t *testing.T, srv, cli *Upgrader, expected types.NodeID) (upgradeResult, upgradeResult) {
	t.Helper()
	sc, cc := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srvCh := make(chan upgradeResult, 1)
	go func() {
		c, err := srv.UpgradeInbound(ctx, sc, "tcp", serverAddr, clientAddr)
		if err != nil {
			// 让出站一侧尽快失败
			cc.Close()
		}
		srvCh <- upgradeResult{c, err}
	}()
	c, err := cli.UpgradeOutbound(ctx, cc, "tcp", clientAddr, serverAddr, expected)
	if err != nil {
		sc.Close()
	}
	cliRes := upgradeResult{c, err}
	srvRes := <-srvCh
	for _, r := range []upgradeResult{cliRes, srvRes} {
		if r.conn != nil {
			conn := r.conn
			t.Cleanup(func() { conn.Close() })
		}
	}
	return srvRes, cliRes
}

// TestUpgrade_Success 升级后可以打开流并交换数据
func TestUpgrade_Success(t *testing.T) {
	sid, cid := identity.FromSeed("server"), identity.FromSeed("client")
	sg, cg := gater.New(0), gater.New(0)

	srv, cli := upgradePair(t, newUpgrader(t, sid, sg), newUpgrader(t, cid, cg), sid.ID())
	require.NoError(t, srv.err)
	require.NoError(t, cli.err)

	assert.Equal(t, cid.ID(), srv.conn.RemotePeer())
	assert.Equal(t, sid.ID(), cli.conn.RemotePeer())
	assert.Equal(t, "tcp", cli.conn.Transport())
	assert.Equal(t, clientAddr, srv.conn.RemoteMultiaddr())

	go func() {
		s, err := srv.conn.AcceptStream()
		if err != nil {
			return
		}
		_, _ = io.Copy(s, s)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := cli.conn.OpenStream(ctx)
	require.NoError(t, err)
	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	assert.EqualValues(t, 1, sg.Stats().ActiveReserved)
	require.NoError(t, srv.conn.Close())
	assert.EqualValues(t, 0, sg.Stats().ActiveReserved, "关闭连接释放槽位")
	require.NoError(t, srv.conn.Close(), "重复关闭无副作用")
	assert.EqualValues(t, 0, sg.Stats().ActiveReserved)
}

// TestUpgrade_GatedByAddress 远端地址被封禁时入站在握手前被拒绝
func TestUpgrade_GatedByAddress(t *testing.T) {
	sid, cid := identity.FromSeed("server"), identity.FromSeed("client")
	sg := gater.New(0)
	target, err := gater.ParseTarget("127.0.0.1")
	require.NoError(t, err)
	sg.Ban(target)

	srv, cli := upgradePair(t, newUpgrader(t, sid, sg), newUpgrader(t, cid, gater.New(0)), sid.ID())
	assert.ErrorIs(t, srv.err, ErrGated)
	assert.Error(t, cli.err)
	assert.EqualValues(t, 0, sg.Stats().ActiveReserved)
}

// TestUpgrade_GatedByPeer 身份被封禁时握手后被拒绝
func TestUpgrade_GatedByPeer(t *testing.T) {
	sid, cid := identity.FromSeed("server"), identity.FromSeed("client")
	sg := gater.New(0)
	sg.Ban(gater.PeerTarget(cid.ID()))

	srv, cli := upgradePair(t, newUpgrader(t, sid, sg), newUpgrader(t, cid, gater.New(0)), sid.ID())
	assert.ErrorIs(t, srv.err, ErrGated)
	assert.Error(t, cli.err)
	assert.EqualValues(t, 0, sg.Stats().ActiveReserved)
}

// TestUpgrade_ConnLimit 槽位用尽时拒绝入站
func TestUpgrade_ConnLimit(t *testing.T) {
	sid, cid := identity.FromSeed("server"), identity.FromSeed("client")
	sg := gater.New(1)
	require.True(t, sg.Reserve())

	srv, _ := upgradePair(t, newUpgrader(t, sid, sg), newUpgrader(t, cid, gater.New(0)), sid.ID())
	assert.ErrorIs(t, srv.err, ErrConnLimit)
	assert.EqualValues(t, 1, sg.Stats().ActiveReserved)
}

// TestUpgrade_PeerMismatch 出站期望身份不符时失败并释放槽位
func TestUpgrade_PeerMismatch(t *testing.T) {
	sid, cid := identity.FromSeed("server"), identity.FromSeed("client")
	cg := gater.New(0)

	_, cli := upgradePair(t, newUpgrader(t, sid, gater.New(0)), newUpgrader(t, cid, cg), identity.FromSeed("other").ID())
	assert.ErrorIs(t, cli.err, ErrHandshakeFailed)
	assert.ErrorIs(t, cli.err, noise.ErrPeerIDMismatch)
	assert.EqualValues(t, 0, cg.Stats().ActiveReserved)
}

// TestUpgrade_CloseOverTCP 真实 TCP 连接上正常关闭不返回错误
func TestUpgrade_CloseOverTCP(t *testing.T) {
	sid, cid := identity.FromSeed("server"), identity.FromSeed("client")
	srvUp := newUpgrader(t, sid, gater.New(0))
	cliUp := newUpgrader(t, cid, gater.New(0))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srvCh := make(chan upgradeResult, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			srvCh <- upgradeResult{nil, err}
			return
		}
		c, err := srvUp.UpgradeInbound(ctx, raw, "tcp", serverAddr, clientAddr)
		srvCh <- upgradeResult{c, err}
	}()

	raw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	cli, err := cliUp.UpgradeOutbound(ctx, raw, "tcp", clientAddr, serverAddr, sid.ID())
	require.NoError(t, err)
	srv := <-srvCh
	require.NoError(t, srv.err)
	defer srv.conn.Close()

	require.NoError(t, cli.Close())
	assert.True(t, cli.IsClosed())
	require.NoError(t, cli.Close())
}
