package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/spawnvm"
)

var rankCmd = &cobra.Command{
	Use:   "rank [flags] -- command",
	Short: "Run one participant of a pool sharing a directory",
	Long: `Every participant of the pool is started with the same --url, --size and
--session and its own --rank. Without --session each participant clears its
inbox on start, so rank 0 has to be started last. Rank 0 runs command on every worker and prints the results;
the other ranks serve tasks until rank 0 is done.`,
	RunE: runRank,
}

func init() {
	rankCmd.Flags().Int("rank", 0, "address of this participant")
	rankCmd.Flags().Int("size", 1, "number of participants")
	rankCmd.Flags().String("url", "", "shared directory URL")
	rankCmd.Flags().String("session", "", "run name shared by every participant; without it start rank 0 last")
	rankCmd.Flags().Duration("timeout", time.Minute, "max time to wait for all tasks")
	_ = viper.BindPFlag("transport.rank", rankCmd.Flags().Lookup("rank"))
	_ = viper.BindPFlag("transport.size", rankCmd.Flags().Lookup("size"))
	_ = viper.BindPFlag("transport.url", rankCmd.Flags().Lookup("url"))
	_ = viper.BindPFlag("transport.session", rankCmd.Flags().Lookup("session"))
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	timeout, _ := cmd.Flags().GetDuration("timeout")
	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	config.Transport.Kind = spawnvm.TransportFS
	srv, err := spawnvm.New(spawnvm.WithConfig(config))
	if err != nil {
		return err
	}
	var app spawnvm.App
	if len(args) > 0 {
		app = execApp(strings.Join(args, " "), timeout, cmd.OutOrStdout())
	}
	return srv.Run(ctx, app)
}
