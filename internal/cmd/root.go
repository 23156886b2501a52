// Package cmd implements the spawnvm command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/afs"
	"github.com/viant/spawnvm"
)

var rootCmd = &cobra.Command{
	Use:   "spawnvm",
	Short: "Spawn functions on a pool of worker processes",
	Long: `spawnvm runs one coordinator and a fixed pool of workers. The coordinator
spawns functions on free worker slots and collects their results.`,
	SilenceUsage: true,
}

// Execute runs the root command until it completes or the process is interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config URL (any afs location, e.g. file:///etc/spawnvm.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().String("debug-level", "", "level at which workers forward log lines")
	rootCmd.PersistentFlags().String("workdir", "", "base URL of per task scratch directories")
	rootCmd.PersistentFlags().Bool("trace", false, "write OpenTelemetry spans to stdout")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("worker.debug_level", rootCmd.PersistentFlags().Lookup("debug-level"))
	_ = viper.BindPFlag("workdir.url", rootCmd.PersistentFlags().Lookup("workdir"))
	_ = viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("trace"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rankCmd)
}

func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SPAWNVM")
	// SPAWNVM_LOGGING_LEVEL for logging.level
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// loadConfig reads the optional config file, then applies flag and env overrides
func loadConfig(ctx context.Context) (*spawnvm.Config, error) {
	config := spawnvm.DefaultConfig()
	if URL := viper.GetString("config"); URL != "" {
		loaded, err := spawnvm.LoadConfig(ctx, afs.New(), URL)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	applyOverrides(config)
	return config, nil
}

func applyOverrides(config *spawnvm.Config) {
	if value := viper.GetString("logging.level"); value != "" {
		config.Logging.Level = value
	}
	if value := viper.GetString("logging.format"); value != "" {
		config.Logging.Format = value
	}
	if value := viper.GetString("worker.debug_level"); value != "" {
		config.Worker.DebugLevel = value
	}
	if value := viper.GetString("workdir.url"); value != "" {
		config.Workdir.URL = value
	}
	if viper.GetBool("tracing.enabled") {
		config.Tracing.Enabled = true
	}
	if value := viper.GetString("transport.url"); value != "" {
		config.Transport.URL = value
	}
	if value := viper.GetString("transport.session"); value != "" {
		config.Transport.Session = value
	}
	if viper.IsSet("transport.rank") {
		config.Transport.Rank = viper.GetInt("transport.rank")
	}
	if viper.IsSet("transport.size") {
		config.Transport.Size = viper.GetInt("transport.size")
	}
}
