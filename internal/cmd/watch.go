package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"swarmclone-desktop/internal/state"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type changeEvent struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Unset bool   `json:"unset,omitempty"`
}

// newWatchCmd creates the "watch" command.
func newWatchCmd(provider *AppProvider) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print configuration changes as they happen",
		Long: `Watch the configuration document and print every key that changes when
another program (such as the desktop application) rewrites it.

A key removed from the document is printed as "unset", while a key set to
JSON null is printed as "changed key = null". Removing a core key reports
its default value.

Runs until interrupted, or for the given --for duration.

Examples:
  swarmctl watch
  swarmctl watch --json --for 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			rt := app.Runtime
			events := make(chan changeEvent, 64)
			sub := rt.State.SubscribeAllChanges(func(c state.Change) {
				ev := changeEvent{Key: c.Key, Value: c.Value, Unset: c.Removed}
				select {
				case events <- ev:
				case <-ctx.Done():
				}
			})
			defer sub.Cancel()

			if err := rt.StartWatching(ctx); err != nil {
				return err
			}
			if !app.JSON {
				fmt.Fprintf(app.Out, "Watching %s\n", rt.Paths.ConfigFile)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				enc := json.NewEncoder(app.Out)
				for {
					select {
					case <-gctx.Done():
						return nil
					case ev := <-events:
						if err := printChange(app, enc, ev); err != nil {
							return err
						}
					}
				}
			})
			g.Go(func() error {
				<-gctx.Done()
				sub.Cancel()
				return nil
			})
			return g.Wait()
		},
	}

	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (default: until interrupted)")
	return cmd
}

func printChange(app *App, enc *json.Encoder, ev changeEvent) error {
	if app.JSON {
		return enc.Encode(ev)
	}
	if ev.Unset {
		_, err := fmt.Fprintf(app.Out, "%s %s\n", app.WarnColor("unset"), ev.Key)
		return err
	}
	_, err := fmt.Fprintf(app.Out, "%s %s = %s\n", app.SuccessColor("changed"), ev.Key, formatValue(ev.Value))
	return err
}
