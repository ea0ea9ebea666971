// Package bootnode 实现点对点网络的引导节点
//
// 引导节点维护 Kademlia 路由表，响应其他节点的 FIND_NODE 查询，
// 并通过回拨探测判断自身是否可从公网直接访问。
//
// # 快速开始
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    return err
//	}
//	node, err := bootnode.New(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := node.Start(ctx); err != nil {
//	    return err
//	}
//	defer node.Stop(context.Background())
//
// # 组件
//
//	┌──────────────────────────────────────────────────────┐
//	│  Orchestrator（单写者事件循环，独占路由表）             │
//	├───────────────┬───────────────┬──────────────────────┤
//	│  DHT          │  Liveness     │  Reachability        │
//	├───────────────┴───────────────┴──────────────────────┤
//	│  Host: identify / ping / 准入过滤 / 事件             │
//	├──────────────────────────────────────────────────────┤
//	│  Transport: tcp+noise+yamux / QUIC / WebSocket       │
//	└──────────────────────────────────────────────────────┘
//
// 组件由 fx 组装，详见 fx.go。
package bootnode
