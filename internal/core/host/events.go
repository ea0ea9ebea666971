package host

import "github.com/dep2p/go-bootnode/pkg/types"

// Event 主机事件
//
// 同一连接的事件总是按产生顺序投递。
type Event interface {
	// PeerID 事件涉及的远端节点
	PeerID() types.NodeID
}

// EvDialing 开始向节点拨号
type EvDialing struct {
	Peer types.NodeID
}

// EvDialFailed 向节点的所有地址拨号均失败
type EvDialFailed struct {
	Peer types.NodeID
	Err  error
}

// EvConnEstablished 连接完成握手并登记到连接表
type EvConnEstablished struct {
	Conn *Conn
}

// EvIdentified 身份交换成功
type EvIdentified struct {
	Conn *Conn
	Info *types.IdentifyInfo
}

// EvIdentifyFailed 身份交换失败，连接随后关闭
type EvIdentifyFailed struct {
	Conn *Conn
	Err  error
}

// EvConnClosed 连接关闭
//
// Cause 为 nil 表示本地主动的正常关闭。
type EvConnClosed struct {
	Conn  *Conn
	Cause error
}

func (e EvDialing) PeerID() types.NodeID         { return e.Peer }
func (e EvDialFailed) PeerID() types.NodeID      { return e.Peer }
func (e EvConnEstablished) PeerID() types.NodeID { return e.Conn.RemotePeer() }
func (e EvIdentified) PeerID() types.NodeID      { return e.Conn.RemotePeer() }
func (e EvIdentifyFailed) PeerID() types.NodeID  { return e.Conn.RemotePeer() }
func (e EvConnClosed) PeerID() types.NodeID      { return e.Conn.RemotePeer() }
