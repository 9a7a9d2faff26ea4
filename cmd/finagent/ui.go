package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"finagent/internal/app"
	"finagent/internal/ui"

	"github.com/spf13/cobra"
)

var uiAddr string

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Serve the interactive query form",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, env, app.Options{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		addr := a.Config.UI.Addr
		if uiAddr != "" {
			addr = uiAddr
		}

		srv := ui.NewServer(ui.NewForm(a.Dispatcher))
		slog.Info("starting ui", "addr", addr, "agents", len(a.Dispatcher.Agents()))
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	uiCmd.Flags().StringVarP(&uiAddr, "addr", "a", "", "override ui listen address")
}
