package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-bootnode"
	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/identity"
)

func init() {
	rootCmd.AddCommand(versionCmd, idCmd, defaultConfigCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "bootnode %s\n", bootnode.Version)
		if bootnode.GitCommit != "" {
			fmt.Fprintf(out, "  commit: %s\n", bootnode.GitCommit)
		}
		if bootnode.BuildDate != "" {
			fmt.Fprintf(out, "  built:  %s\n", bootnode.BuildDate)
		}
	},
}

// idCmd 不启动网络，只根据配置中的私钥输出 NodeID
var idCmd = &cobra.Command{
	Use:   "id",
	Short: "输出配置私钥对应的 NodeID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if cfg.SecretKey.IsRandom() {
			return fmt.Errorf("secret_key is empty: a random identity is generated on every start")
		}
		id, err := identity.New(cfg.SecretKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.ID())
		return nil
	},
}

var defaultConfigCmd = &cobra.Command{
	Use:   "default-config",
	Short: "输出默认配置（YAML）",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := config.Default().Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
