// Package netaddr 提供地址分类、展开与主机名解析
//
// netaddr 位于依赖层次的底层，只依赖 pkg/types 与 go-multiaddr。
package netaddr

import (
	"net"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// IsPublic 判断地址是否为公网可路由地址
//
// DNS 名称地址视为公网地址（解析结果在拨号时再判断）。
func IsPublic(m ma.Multiaddr) bool {
	if m == nil {
		return false
	}
	if IsDNS(m) {
		return true
	}
	return manet.IsPublicAddr(m)
}

// IsPublicIP 判断 IP 是否为全局单播地址
func IsPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback()
}

// IsUnspecified 判断地址的 IP 是否为 0.0.0.0 或 ::
func IsUnspecified(m ma.Multiaddr) bool {
	return m != nil && manet.IsIPUnspecified(m)
}

// IsDNS 判断地址是否以 /dns、/dns4、/dns6 或 /dnsaddr 开头
func IsDNS(m ma.Multiaddr) bool {
	if m == nil {
		return false
	}
	first, _ := ma.SplitFirst(m)
	if first == nil {
		return false
	}
	switch first.Protocol().Code {
	case ma.P_DNS, ma.P_DNS4, ma.P_DNS6, ma.P_DNSADDR:
		return true
	}
	return false
}

// ToIP 提取地址中的 IP，没有 IP 组件时返回 nil
func ToIP(m ma.Multiaddr) net.IP {
	if m == nil {
		return nil
	}
	ip, err := manet.ToIP(m)
	if err != nil {
		return nil
	}
	return ip
}

// SameIP 判断两个地址的 IP 是否相同
func SameIP(a, b ma.Multiaddr) bool {
	ipa, ipb := ToIP(a), ToIP(b)
	return ipa != nil && ipb != nil && ipa.Equal(ipb)
}

// FilterAdvertisable 过滤掉不应通告给其他节点的地址
//
// 丢弃未指定地址（0.0.0.0、::）和无效地址。
func FilterAdvertisable(addrs []ma.Multiaddr) []ma.Multiaddr {
	out := make([]ma.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		if a == nil || IsUnspecified(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FilterPublic 只保留公网地址
func FilterPublic(addrs []ma.Multiaddr) []ma.Multiaddr {
	out := make([]ma.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		if IsPublic(a) {
			out = append(out, a)
		}
	}
	return out
}

// ExpandUnspecified 将未指定 IP 的监听地址展开为各网卡地址
//
// 例如 /ip4/0.0.0.0/tcp/39000 展开为 /ip4/127.0.0.1/tcp/39000、/ip4/10.0.0.2/tcp/39000 等。
// 无法获取网卡地址时返回原地址。
func ExpandUnspecified(listen ma.Multiaddr) []ma.Multiaddr {
	if !IsUnspecified(listen) {
		return []ma.Multiaddr{listen}
	}
	ifaceAddrs, err := manet.InterfaceMultiaddrs()
	if err != nil {
		return []ma.Multiaddr{listen}
	}
	first, rest := ma.SplitFirst(listen)
	if first == nil {
		return []ma.Multiaddr{listen}
	}
	wantCode := first.Protocol().Code

	var out []ma.Multiaddr
	for _, ia := range ifaceAddrs {
		ifFirst, _ := ma.SplitFirst(ia)
		if ifFirst == nil || ifFirst.Protocol().Code != wantCode {
			continue
		}
		if rest == nil {
			out = append(out, ifFirst)
			continue
		}
		out = append(out, ifFirst.Encapsulate(rest))
	}
	if len(out) == 0 {
		return []ma.Multiaddr{listen}
	}
	return out
}

// WithIP 替换地址中的 IP，保留传输部分
//
// 用于由观察到的 IP 和本地监听端口构造外部地址候选。
func WithIP(ip net.IP, transport ma.Multiaddr) (ma.Multiaddr, error) {
	ipAddr, err := manet.FromIP(ip)
	if err != nil {
		return nil, err
	}
	_, rest := ma.SplitFirst(transport)
	if rest == nil {
		return ipAddr, nil
	}
	return ipAddr.Encapsulate(rest), nil
}
