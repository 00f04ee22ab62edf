package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "chatbot exited with error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd wires the cobra root command. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	serveCmd := newServeCommand()

	root := &cobra.Command{
		Use:   "chatbot",
		Short: "Vehicle telemetry chatbot",
		Long:  "Answers natural-language questions about vehicle telemetry by generating and running analysis scripts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd.RunE(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd)
	root.AddCommand(newAskCommand())
	return root
}
