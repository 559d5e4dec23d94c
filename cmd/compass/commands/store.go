package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/config"
	dockerpkg "github.com/dyluth/compass/internal/docker"
	"github.com/dyluth/compass/internal/printer"
)

var (
	storeDownRemove   bool
	storeStatusOutput string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage a local Redis container for the project store",
	Long: `Run a labelled Redis container for the configured namespace.

Point compass at it with:
  store:
    backend: redis
    redis_url: <url printed by 'compass store up'>`,
}

var storeUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the Redis store container",
	Args:  cobra.NoArgs,
	RunE:  runStoreUp,
}

var storeDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the Redis store container",
	Args:  cobra.NoArgs,
	RunE:  runStoreDown,
}

var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the Redis store container",
	Args:  cobra.NoArgs,
	RunE:  runStoreStatus,
}

func init() {
	storeDownCmd.Flags().BoolVar(&storeDownRemove, "rm", false, "Remove the container and its data")
	storeStatusCmd.Flags().StringVarP(&storeStatusOutput, "output", "o", "default", "Output format: default or json")

	storeCmd.AddCommand(storeUpCmd, storeDownCmd, storeStatusCmd)
	rootCmd.AddCommand(storeCmd)
}

func runStoreUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	cli, err := dockerpkg.NewClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cli.Close()

	opts := dockerpkg.UpOptions{}
	if cfg.Services != nil && cfg.Services.Redis != nil {
		opts.Image = cfg.Services.Redis.Image
		opts.Port = cfg.Services.Redis.Port
	}

	printer.Step("Starting Redis for namespace '%s'...\n", cfg.Store.Namespace)
	info, err := dockerpkg.NewRedisStore(cli, log).Up(cmd.Context(), cfg.Store.Namespace, opts)
	if err != nil {
		return printer.ErrorWithContext(
			"failed to start store container",
			err.Error(),
			map[string]string{"namespace": cfg.Store.Namespace},
			[]string{"Check Docker is running:\n  docker info"},
		)
	}

	printer.Success("Store container %s is running\n", info.Container)
	printer.Info("  URL: %s\n", info.URL)
	if cfg.Store.Backend != config.BackendRedis || cfg.Store.RedisURL != info.URL {
		printer.Info("\nUse it by setting in %s:\n  store:\n    backend: redis\n    redis_url: %s\n", configPath, info.URL)
	}
	return nil
}

func runStoreDown(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cli.Close()

	info, err := dockerpkg.NewRedisStore(cli, newLogger(cfg)).Down(cmd.Context(), cfg.Store.Namespace, storeDownRemove)
	if err != nil {
		return fmt.Errorf("failed to stop store container: %w", err)
	}

	switch {
	case info.Status == dockerpkg.StatusMissing && !storeDownRemove:
		printer.Info("No store container for namespace '%s'\n", cfg.Store.Namespace)
	case storeDownRemove:
		printer.Success("Removed %s\n", info.Container)
	default:
		printer.Success("Stopped %s (data kept; 'compass store up' restarts it)\n", info.Container)
	}
	return nil
}

func runStoreStatus(cmd *cobra.Command, args []string) error {
	if storeStatusOutput != "default" && storeStatusOutput != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", storeStatusOutput),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cli.Close()

	info, err := dockerpkg.NewRedisStore(cli, newLogger(cfg)).Status(cmd.Context(), cfg.Store.Namespace)
	if err != nil {
		return fmt.Errorf("failed to inspect store container: %w", err)
	}

	if storeStatusOutput == "json" {
		enc := json.NewEncoder(printer.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	printer.Printf("%-12s %s\n", "NAMESPACE", info.Namespace)
	printer.Printf("%-12s %s\n", "CONTAINER", info.Container)
	printer.Printf("%-12s %s\n", "STATUS", info.Status)
	if info.URL != "" {
		printer.Printf("%-12s %s\n", "URL", info.URL)
	}
	if info.Uptime != "" {
		printer.Printf("%-12s %s\n", "UPTIME", info.Uptime)
	}
	return nil
}
