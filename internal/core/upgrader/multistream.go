package upgrader

import (
	"context"
	"fmt"
	"net"
	"time"

	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// negotiate 在连接上用 multistream-select 协商单个协议
//
// 服务器端使用 MultistreamMuxer.Negotiate()，客户端使用 SelectProtoOrFail()。
func negotiate(ctx context.Context, conn net.Conn, proto types.ProtocolID, isServer bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	defer conn.SetDeadline(time.Time{})

	if isServer {
		muxer := mss.NewMultistreamMuxer[types.ProtocolID]()
		muxer.AddHandler(proto, nil)
		selected, _, err := muxer.Negotiate(conn)
		if err != nil {
			return fmt.Errorf("%w: server %s: %v", ErrNegotiationFailed, proto, err)
		}
		if selected != proto {
			return fmt.Errorf("%w: selected %s", ErrNegotiationFailed, selected)
		}
		return nil
	}

	if err := mss.SelectProtoOrFail(proto, conn); err != nil {
		return fmt.Errorf("%w: client %s: %v", ErrNegotiationFailed, proto, err)
	}
	return nil
}
