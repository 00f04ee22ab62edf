package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"telemetry-chatbot/internal/pipeline"
)

func newAskCommand() *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and print the response envelope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return ask(cmd.Context(), a.service, strings.Join(args, " "), cmd.OutOrStdout(), pretty)
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", true, "indent the JSON output")
	return cmd
}

type asker interface {
	Handle(ctx context.Context, message string) pipeline.Outcome
}

func ask(ctx context.Context, svc asker, question string, out io.Writer, pretty bool) error {
	res := svc.Handle(ctx, question)

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res.Envelope)
}
