package identify

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/netaddr"
	"github.com/dep2p/go-bootnode/internal/util/msgio"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("protocol/identify")

const (
	// observedCacheSize 记录的观察地址上限
	observedCacheSize = 64

	// observedTTL 观察地址的有效期
	observedTTL = 30 * time.Minute
)

// message 线上消息
type message struct {
	ProtocolVersion string   `json:"protocol_version"`
	AgentVersion    string   `json:"agent_version"`
	ListenAddrs     []string `json:"listen_addrs"`
	ObservedAddr    string   `json:"observed_addr,omitempty"`
	Protocols       []string `json:"protocols"`
	PublicKey       []byte   `json:"public_key"`
}

// Service 身份交换服务
type Service struct {
	host            *host.Host
	protocolVersion string
	agentVersion    string

	// observed 远端观察到的本端地址，键为地址字符串
	observed *expirable.LRU[string, ma.Multiaddr]
}

// NewService 创建服务，注册流处理器并接管主机的身份交换
func NewService(h *host.Host, protocolVersion, agentVersion string) *Service {
	s := &Service{
		host:            h,
		protocolVersion: protocolVersion,
		agentVersion:    agentVersion,
		observed:        expirable.NewLRU[string, ma.Multiaddr](observedCacheSize, nil, observedTTL),
	}
	h.SetStreamHandler(protocolids.SysIdentify, s.handle)
	h.SetIdentifier(s.Identify)
	return s
}

// ProtocolVersion 返回本节点的协议族标识
func (s *Service) ProtocolVersion() string { return s.protocolVersion }

// handle 向请求方发送本节点信息
func (s *Service) handle(st *host.Stream) {
	defer st.Close()
	_ = st.SetWriteDeadline(time.Now().Add(10 * time.Second))

	m := s.localMessage(st.Conn().RemoteMultiaddr())
	if err := msgio.WriteMsg(st, m); err != nil {
		logger.Debug("发送身份信息失败", "peer", st.Conn().RemotePeer().ShortString(), "error", err)
		_ = st.Reset()
	}
}

func (s *Service) localMessage(observed ma.Multiaddr) *message {
	protos := s.host.Protocols()
	m := &message{
		ProtocolVersion: s.protocolVersion,
		AgentVersion:    s.agentVersion,
		ListenAddrs:     types.AddrStrings(s.host.AdvertisedAddrs()),
		Protocols:       make([]string, 0, len(protos)),
		PublicKey:       s.host.Identity().PublicKey(),
	}
	for _, p := range protos {
		m.Protocols = append(m.Protocols, string(p))
	}
	if observed != nil {
		m.ObservedAddr = observed.String()
	}
	return m
}

// Identify 在连接上读取对端信息并校验
func (s *Service) Identify(ctx context.Context, c *host.Conn) (*types.IdentifyInfo, error) {
	st, err := c.NewStream(ctx, protocolids.SysIdentify)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = st.SetReadDeadline(deadline)
	}

	var m message
	if err := msgio.ReadMsg(st, &m); err != nil {
		return nil, fmt.Errorf("read identify message: %w", err)
	}

	info, err := s.parse(&m, c.RemotePeer())
	if err != nil {
		return nil, err
	}
	if info.ObservedAddr != nil {
		s.observed.Add(string(info.ObservedAddr.Bytes()), info.ObservedAddr)
	}

	if agent, err := ParseAgent(info.AgentVersion); err != nil {
		logger.Debug("代理版本无法解析", "peer", c.RemotePeer().ShortString(), "agent", info.AgentVersion)
	} else {
		logger.Debug("身份交换完成", "peer", c.RemotePeer().ShortString(),
			"client", agent.ClientType, "mode", agent.Mode, "addrs", len(info.ListenAddrs))
	}
	return info, nil
}

// parse 校验消息并转换为 IdentifyInfo
func (s *Service) parse(m *message, remote types.NodeID) (*types.IdentifyInfo, error) {
	if len(m.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: bad key length %d", ErrPublicKeyMismatch, len(m.PublicKey))
	}
	pub := ed25519.PublicKey(m.PublicKey)
	if types.NodeIDFromPublicKey(pub) != remote {
		return nil, ErrPublicKeyMismatch
	}
	if m.ProtocolVersion != s.protocolVersion {
		return nil, fmt.Errorf("%w: local %q, remote %q", ErrProtocolMismatch, s.protocolVersion, m.ProtocolVersion)
	}

	info := &types.IdentifyInfo{
		ProtocolVersion: m.ProtocolVersion,
		AgentVersion:    m.AgentVersion,
		PublicKey:       pub,
	}
	for _, a := range types.ParseAddrs(m.ListenAddrs) {
		if rest, last := ma.SplitLast(a); last != nil && last.Protocol().Code == ma.P_P2P {
			a = rest
		}
		if a != nil {
			info.ListenAddrs = append(info.ListenAddrs, a)
		}
	}
	info.ListenAddrs = types.MergeAddrs(netaddr.FilterAdvertisable(info.ListenAddrs))
	if m.ObservedAddr != "" {
		if obs, err := ma.NewMultiaddr(m.ObservedAddr); err == nil {
			info.ObservedAddr = obs
		}
	}
	for _, p := range m.Protocols {
		info.Protocols = append(info.Protocols, types.ProtocolID(p))
	}
	return info, nil
}

// ObservedAddrs 返回近期对端观察到的本端地址
func (s *Service) ObservedAddrs() []ma.Multiaddr {
	return s.observed.Values()
}
