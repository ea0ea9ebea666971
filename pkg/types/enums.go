package types

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接
	DirInbound
	// DirOutbound 出站连接
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Reachability - 可达性
// ============================================================================

// Reachability 本节点的可达性分类
type Reachability int

const (
	// ReachabilityUnknown 尚无足够证据
	ReachabilityUnknown Reachability = iota
	// ReachabilityPublic 可被公网直接拨入
	ReachabilityPublic
	// ReachabilityPrivate 位于 NAT/防火墙之后
	ReachabilityPrivate
)

// String 返回可达性的字符串表示
func (r Reachability) String() string {
	switch r {
	case ReachabilityPublic:
		return "public"
	case ReachabilityPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              PeerState - 路由表记录连接状态
// ============================================================================

// PeerState Peer Record 的连接状态
type PeerState int

const (
	// PeerDisconnected 已知地址但没有连接
	PeerDisconnected PeerState = iota
	// PeerConnecting 正在拨号
	PeerConnecting
	// PeerConnected 连接已建立，身份交换未完成
	PeerConnected
	// PeerIdentified 身份交换成功
	PeerIdentified
)

// String 返回状态的字符串表示
func (s PeerState) String() string {
	switch s {
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerIdentified:
		return "identified"
	default:
		return "disconnected"
	}
}

// ============================================================================
//                              ConnState - 连接状态机
// ============================================================================

// ConnState 单条连接的生命周期状态
//
//	pending → admitted → identifying → identified → active → closing → closed
//
// 任意状态在出错、超时或封禁时都可直接转入 closed。
type ConnState int

const (
	ConnPending ConnState = iota
	ConnAdmitted
	ConnIdentifying
	ConnIdentified
	ConnActive
	ConnClosing
	ConnClosed
)

var connStateNames = [...]string{
	ConnPending:     "pending",
	ConnAdmitted:    "admitted",
	ConnIdentifying: "identifying",
	ConnIdentified:  "identified",
	ConnActive:      "active",
	ConnClosing:     "closing",
	ConnClosed:      "closed",
}

// String 返回状态名
func (s ConnState) String() string {
	if s < 0 || int(s) >= len(connStateNames) {
		return "invalid"
	}
	return connStateNames[s]
}

// CanTransition 检查状态迁移是否合法
func (s ConnState) CanTransition(next ConnState) bool {
	if s == ConnClosed {
		return false
	}
	if next == ConnClosed {
		return true
	}
	return next == s+1
}
