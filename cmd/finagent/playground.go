package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"finagent/internal/app"
	"finagent/internal/config"
	"finagent/internal/playground"

	"github.com/spf13/cobra"
)

var (
	playgroundAddr   string
	playgroundReload bool
)

var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Serve the web search and financial agents over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, env, app.Options{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		addr := a.Config.Playground.Addr
		if playgroundAddr != "" {
			addr = playgroundAddr
		}

		srv := playground.NewServer(backendOf(a))

		if playgroundReload {
			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}
			// Rebuilt backends share a's tracker and tracer, so the one they
			// replace can keep finishing its runs without being closed.
			go playground.Watch(ctx, path, a.Config.Playground.ReloadInterval, func(ctx context.Context) error {
				next, err := a.Rebuild(ctx)
				if err != nil {
					return err
				}
				if next.Config.Playground.Addr != a.Config.Playground.Addr && playgroundAddr == "" {
					slog.Warn("playground address changed; restart to apply", "addr", next.Config.Playground.Addr)
				}
				srv.Swap(backendOf(next))
				slog.Info("agents reloaded", "binding", next.Binding)
				return nil
			})
		}

		slog.Info("starting playground", "addr", addr, "reload", playgroundReload)
		return srv.ListenAndServe(ctx, addr)
	},
}

func backendOf(a *app.App) *playground.Backend {
	return &playground.Backend{
		Agents:     a.Agents.Leaves(),
		Dispatcher: a.Playground,
	}
}

func init() {
	playgroundCmd.Flags().StringVarP(&playgroundAddr, "addr", "a", "", "override playground listen address")
	playgroundCmd.Flags().BoolVar(&playgroundReload, "reload", true, "rebuild the agents when the config file changes")
}
