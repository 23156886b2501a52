package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/spawnvm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command",
	Short: "Run a command on every slot of an in-process pool",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLocal,
}

func init() {
	runCmd.Flags().IntP("size", "n", 4, "number of participants, coordinator included")
	runCmd.Flags().Duration("timeout", time.Minute, "max time to wait for all tasks")
}

func runLocal(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	size, _ := cmd.Flags().GetInt("size")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	config.Transport.Kind = spawnvm.TransportMemory
	return spawnvm.Launch(ctx, size, execApp(strings.Join(args, " "), timeout, cmd.OutOrStdout()), spawnvm.WithConfig(config))
}
