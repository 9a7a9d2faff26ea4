package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"finagent/internal/agent"
	"finagent/internal/app"
	"finagent/internal/dispatch"

	"github.com/spf13/cobra"
)

const defaultQuestion = "Summarise the analyst recommendations and share the latest news about Apple"

var askAgent string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask an agent one question and stream the answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, env, app.Options{ConfigPath: configPath})
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		question := defaultQuestion
		if len(args) > 0 {
			question = strings.Join(args, " ")
		}

		out := cmd.OutOrStdout()
		_, err = a.Dispatcher.DispatchStream(ctx, askAgent, question, func(ev agent.Event) {
			switch ev.Type {
			case agent.EventToolCall:
				if call, ok := ev.Data.(map[string]string); ok {
					fmt.Fprintf(out, "Running: %s(%s)\n", call["name"], call["arguments"])
				}
			case agent.EventToken:
				fmt.Fprint(out, ev.Data)
			}
		})
		fmt.Fprintln(out)
		var de *dispatch.DispatchError
		if errors.As(err, &de) {
			return errors.New(de.UserMessage())
		}
		return err
	},
}

func init() {
	askCmd.Flags().StringVar(&askAgent, "agent", agent.IDMulti, "agent to ask (web-search, financial, multi)")
}
