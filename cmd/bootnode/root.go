package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-bootnode"
	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
)

var logger = log.Logger("cmd")

// 日志文件滚动参数
const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 28
)

// 命令行参数只做运行时覆盖，持久化配置写在 YAML 文件中
var (
	configFile string
	seeds      []string
	port       int
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "bootnode",
	Short: "点对点网络引导节点",
	Long: `bootnode 维护 Kademlia 路由表并响应 FIND_NODE 查询，
新节点通过它加入网络。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runNode,
}

func init() {
	rootCmd.Version = bootnode.VersionInfo()

	f := rootCmd.PersistentFlags()
	f.StringVarP(&configFile, "config", "c", "", "YAML 配置文件路径")
	f.StringVar(&logLevel, "log-level", "", "日志级别，如 info 或 dht=debug,info")

	rf := rootCmd.Flags()
	rf.StringArrayVar(&seeds, "seed", nil, "追加引导节点地址（/ip4/.../tcp/.../p2p/<NodeID>），可重复")
	rf.IntVarP(&port, "port", "p", 0, "覆盖监听端口")
}

// loadConfig 加载配置文件并应用命令行覆盖
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Transport.Port = port
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	cfg.DHT.BootstrapPeers = append(cfg.DHT.BootstrapPeers, seeds...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置错误: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) (func(), error) {
	closer, err := log.Setup(log.Options{
		Level:      cfg.LogLevel,
		JSON:       cfg.LogFormatJSON,
		File:       cfg.LogFile,
		MaxSizeMB:  logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAgeDays: logMaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("日志配置错误: %w", err)
	}
	return func() {
		if closer != nil {
			_ = closer.Close()
		}
	}, nil
}

func runNode(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("启动 bootnode", "version", bootnode.Version, "commit", bootnode.GitCommit, "buildDate", bootnode.BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := bootnode.New(cfg)
	if err != nil {
		return err
	}
	if err := node.Start(ctx); err != nil {
		return err
	}
	printNodeInfo(cmd, node)

	select {
	case <-ctx.Done():
	case <-node.Done():
	}
	stop()
	logger.Info("正在关闭节点")
	return node.Stop(context.Background())
}

// printNodeInfo 输出可直接复制的完整地址
func printNodeInfo(cmd *cobra.Command, node *bootnode.Node) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bootnode %s\n", bootnode.Version)
	fmt.Fprintf(out, "  Node ID: %s\n", node.ID())
	fmt.Fprintf(out, "  HTTP:    %s\n", node.HTTPAddr())
	addrs, err := node.P2pAddrs()
	if err != nil {
		return
	}
	fmt.Fprintln(out, "  Addresses (copy to share):")
	for _, a := range addrs {
		fmt.Fprintf(out, "    %s\n", a)
	}
}
