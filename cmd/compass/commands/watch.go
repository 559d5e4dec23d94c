package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/printer"
	"github.com/dyluth/compass/internal/watch"
)

var (
	watchOutputFormat string
	watchInterval     time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream project saves, renames and deletes",
	Long: `Stream project events for the configured namespace as they happen.

With the redis backend, events arrive over pub/sub. With the sqlite backend,
the store is polled every --interval.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Follow edits made from another terminal
  compass watch

  # Export events as JSON
  compass watch --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Poll interval for the sqlite backend")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := cmd.Context()
	var src watch.Source
	if ws.redis != nil {
		sub, err := ws.redis.SubscribeProjectEvents(ctx, ws.store.Namespace())
		if err != nil {
			return fmt.Errorf("failed to subscribe to project events: %w", err)
		}
		defer sub.Close()
		src = sub
	} else {
		poller := watch.Poll(ctx, ws.store, watchInterval)
		defer poller.Close()
		src = poller
	}

	if format == watch.OutputFormatDefault {
		printer.Info("Watching namespace '%s' (Ctrl+C to stop)\n", ws.store.Namespace())
	}
	return watch.Stream(ctx, src, format, printer.Writer(), ws.log)
}
