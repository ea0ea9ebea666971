package orchestrator

import (
	"time"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Config 事件循环配置
type Config struct {
	// BootstrapPeers 引导节点
	BootstrapPeers []types.AddrInfo

	// BootstrapPeriod 周期性引导间隔，启动引导完成后才开始计时
	BootstrapPeriod time.Duration

	// RefreshInterval 桶刷新间隔
	RefreshInterval time.Duration

	// EvictionProbeTimeout 淘汰前探测候选节点的超时
	EvictionProbeTimeout time.Duration

	// MinConfirmations 与 HistorySize 控制可达性分类的阻尼
	MinConfirmations int
	HistorySize      int
}

// ConfigFrom 从配置文件构造，引导节点地址必须带 /p2p 组件
func ConfigFrom(c *config.Config) (Config, error) {
	seeds := make([]types.AddrInfo, 0, len(c.DHT.BootstrapPeers))
	for _, s := range c.DHT.BootstrapPeers {
		info, err := types.AddrInfoFromString(s)
		if err != nil {
			return Config{}, err
		}
		seeds = append(seeds, info)
	}
	return Config{
		BootstrapPeers:       mergeSeeds(seeds),
		BootstrapPeriod:      c.DHT.BootstrapPeriod.Duration(),
		RefreshInterval:      c.DHT.RefreshInterval.Duration(),
		EvictionProbeTimeout: c.DHT.EvictionProbeTimeout.Duration(),
		MinConfirmations:     c.Reachability.MinConfirmations,
		HistorySize:          c.Reachability.HistorySize,
	}, nil
}

// mergeSeeds 同一节点的多个地址合并为一条
func mergeSeeds(seeds []types.AddrInfo) []types.AddrInfo {
	idx := make(map[types.NodeID]int)
	var out []types.AddrInfo
	for _, s := range seeds {
		if i, ok := idx[s.ID]; ok {
			out[i].Addrs = types.MergeAddrs(out[i].Addrs, s.Addrs)
			continue
		}
		idx[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}
