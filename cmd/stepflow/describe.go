package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-kratos/stepflow"
	"github.com/go-kratos/stepflow/graph"
	"github.com/go-kratos/stepflow/workflow/weather"
)

func newDescribeCmd(opts *options, getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the compiled workflow",
		Long:  `Compile the weather workflow and print its node path`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.config(cmd, getenv)
			if err != nil {
				return err
			}
			schema, err := weather.Schema()
			if err != nil {
				return err
			}
			w := &weather.Workflow{Invoker: stepflow.StaticInvoker("describe", "")}
			executor, err := w.Build(
				graph.WithSchema(schema),
				graph.WithLogger(c.NewLogger(cmd.ErrOrStderr())),
			)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(executor.Path(), " -> "))
			if !opts.schema {
				return nil
			}
			b, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(b))
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.schema, "schema", false, "Also print the JSON schema of the workflow state")
	return cmd
}
