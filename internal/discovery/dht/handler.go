package dht

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/util/msgio"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// handleStream 服务端：从最新快照回答 FIND_NODE，排除请求方
func (d *DHT) handleStream(st *host.Stream) {
	defer st.Close()
	remote := st.Conn().RemotePeer()

	_ = st.SetDeadline(time.Now().Add(d.cfg.RequestTimeout))

	var req Message
	if err := msgio.ReadMsg(st, &req); err != nil {
		logger.Debug("读取请求失败", "peer", remote.ShortString(), "error", err)
		_ = st.Reset()
		return
	}
	if req.Type != MessageTypeFindNode {
		logger.Debug("未知请求类型", "peer", remote.ShortString(), "type", req.Type)
		_ = st.Reset()
		return
	}

	closer := d.store.Load().ClosestPeers(req.Target, d.cfg.BucketSize, remote)
	resp := Message{
		Type:        MessageTypeFindNodeResponse,
		QueryID:     req.QueryID,
		Target:      req.Target,
		CloserPeers: toWire(closer),
	}
	if err := msgio.WriteMsg(st, &resp); err != nil {
		logger.Debug("发送响应失败", "peer", remote.ShortString(), "error", err)
		_ = st.Reset()
		return
	}
}

// findNode 客户端：向单个节点发送 FIND_NODE
func (d *DHT) findNode(ctx context.Context, info types.AddrInfo, target types.NodeID, queryID string) ([]types.AddrInfo, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	st, err := d.host.NewStream(ctx, info, d.protocol)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	stop := context.AfterFunc(ctx, func() { _ = st.Reset() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(deadline)
	}

	req := Message{Type: MessageTypeFindNode, QueryID: queryID, Target: target}
	if err := msgio.WriteMsg(st, &req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	var resp Message
	if err := msgio.ReadMsg(st, &resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.Type != MessageTypeFindNodeResponse {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedType, resp.Type)
	}
	return fromWire(resp.CloserPeers), nil
}
