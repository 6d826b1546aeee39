package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kratos/kit/retry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"

	"github.com/go-kratos/stepflow"
	"github.com/go-kratos/stepflow/contrib/otel"
	"github.com/go-kratos/stepflow/graph"
	"github.com/go-kratos/stepflow/internal/config"
	"github.com/go-kratos/stepflow/internal/provider"
	"github.com/go-kratos/stepflow/middleware"
	"github.com/go-kratos/stepflow/workflow/weather"
)

func newRunCmd(opts *options, getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the weather workflow",
		Long:  `Run planner -> forecast -> summarize and print the summary`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, opts, getenv)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.provider, "provider", "p", config.ProviderStatic, "Model provider: openai, anthropic, gemini, vertex or static")
	flags.StringVarP(&opts.model, "model", "m", "", "Model name")
	flags.StringVarP(&opts.apiKey, "api-key", "k", "", "API key for the provider")
	flags.StringVarP(&opts.baseURL, "base-url", "b", "", "Base URL of the provider API")
	flags.StringVar(&opts.project, "project", "", "Google Cloud project for Vertex AI")
	flags.StringVar(&opts.location, "location", "", "Google Cloud location for Vertex AI")
	flags.StringVar(&opts.credentials, "credentials", "", "Service account file for Vertex AI")
	flags.Int64Var(&opts.maxTokens, "max-tokens", 0, "Maximum output tokens")
	flags.Float64Var(&opts.temperature, "temperature", 0, "Sampling temperature")
	flags.StringVar(&opts.date, "date", weather.DefaultPlan.Date, "Simulated date")
	flags.StringVar(&opts.place, "place", weather.DefaultPlan.Location, "Simulated location")
	flags.StringVar(&opts.condition, "condition", weather.DefaultPlan.Condition, "Expected condition")
	flags.StringVar(&opts.statePath, "state", "", "JSON file with the initial state")
	flags.StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Run timeout, 0 disables it")
	flags.IntVar(&opts.retries, "retries", 1, "Attempts per node")
	flags.IntVar(&opts.modelRetries, "model-retries", 1, "Attempts per model invocation")
	flags.BoolVar(&opts.trace, "trace", false, "Write OpenTelemetry spans to stderr")
	flags.BoolVar(&opts.confirm, "confirm", false, "Ask for confirmation before every model invocation")
	return cmd
}

// config loads the configuration and applies the flags that were set explicitly.
func (o *options) config(cmd *cobra.Command, getenv func(string) string) (config.Config, error) {
	c, err := config.Load(o.envFile, getenv)
	if err != nil {
		return c, err
	}
	flags := cmd.Flags()
	override := func(name string, apply func()) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	override("log-format", func() { c.LogFormat = o.logFormat })
	override("log-level", func() { c.LogLevel = o.logLevel })
	override("provider", func() { c.Provider = o.provider })
	override("model", func() { c.Model = o.model })
	override("api-key", func() { c.APIKey = o.apiKey })
	override("base-url", func() { c.BaseURL = o.baseURL })
	override("project", func() { c.Project = o.project })
	override("location", func() { c.Location = o.location })
	override("credentials", func() { c.Credentials = o.credentials })
	override("max-tokens", func() { c.MaxTokens = o.maxTokens })
	override("temperature", func() { c.Temperature = o.temperature })
	override("timeout", func() { c.Timeout = o.timeout })
	override("retries", func() { c.Retries = o.retries })
	override("model-retries", func() { c.ModelRetries = o.modelRetries })
	override("trace", func() { c.Trace = o.trace })
	return c, c.Validate()
}

func runWorkflow(cmd *cobra.Command, opts *options, getenv func(string) string) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	c, err := opts.config(cmd, getenv)
	if err != nil {
		return err
	}
	logger := c.NewLogger(cmd.ErrOrStderr())

	ctx := cmd.Context()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	invoker, err := provider.New(ctx, c)
	if err != nil {
		return err
	}
	var (
		nodeMiddlewares    []graph.Middleware
		invokerMiddlewares []stepflow.Middleware
	)
	if c.Trace {
		tp, err := newTracerProvider(ctx, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
		nodeMiddlewares = append(nodeMiddlewares, otel.NodeTracing(otel.WithTracerProvider(tp)))
		invokerMiddlewares = append(invokerMiddlewares, otel.ModelTracing(
			otel.WithSystem(provider.System(c)),
			otel.WithTracerProvider(tp),
		))
	}
	nodeMiddlewares = append(nodeMiddlewares, graph.Logging(logger))
	invokerMiddlewares = append(invokerMiddlewares, stepflow.Logging(logger))
	if opts.confirm {
		invokerMiddlewares = append(invokerMiddlewares, middleware.Confirm(promptConfirm(cmd.InOrStdin(), cmd.ErrOrStderr())))
	}
	if c.ModelRetries > 1 {
		invokerMiddlewares = append(invokerMiddlewares, middleware.Retry(c.ModelRetries, retry.WithRetryable(retryable)))
	}
	if c.Retries > 1 {
		nodeMiddlewares = append(nodeMiddlewares, graph.Retry(c.Retries, retry.WithRetryable(retryable)))
	}

	schema, err := weather.Schema()
	if err != nil {
		return err
	}
	w := &weather.Workflow{
		Invoker: stepflow.ChainMiddlewares(invokerMiddlewares...)(invoker),
		Defaults: weather.Plan{
			Date:      opts.date,
			Location:  opts.place,
			Condition: opts.condition,
		},
	}
	executor, err := w.Build(
		graph.WithSchema(schema),
		graph.WithLogger(logger),
		graph.WithMiddleware(nodeMiddlewares...),
	)
	if err != nil {
		return err
	}
	initial, err := readState(opts.statePath)
	if err != nil {
		return err
	}

	run := executor.NewRun()
	logger.Info("run started", "run_id", run.ID(), "provider", c.Provider, "model", invoker.Name())
	state, err := run.Invoke(ctx, initial)
	if err != nil {
		logger.Error("run failed", "run_id", run.ID(), "node", run.Node(), "error", err)
		return err
	}
	logger.Info("run completed", "run_id", run.ID(), "path", run.Path())
	return writeResult(cmd.OutOrStdout(), opts.output, state)
}

// promptConfirm asks on w and reads a yes or no answer from r.
func promptConfirm(r io.Reader, w io.Writer) middleware.ConfirmFunc {
	scanner := bufio.NewScanner(r)
	return func(ctx context.Context, model string, messages []*stepflow.Message) (bool, error) {
		fmt.Fprintf(w, "Send %d messages to %s? [y/N] ", len(messages), model)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return false, err
			}
			return false, nil
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

// retryable reports whether a node failure may succeed on another attempt.
func retryable(err error) bool {
	switch {
	case errors.Is(err, graph.ErrMissingField),
		errors.Is(err, stepflow.ErrNoMessages),
		errors.Is(err, middleware.ErrConfirmDenied),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var typeErr *graph.FieldTypeError
	return !errors.As(err, &typeErr)
}

func readState(path string) (graph.State, error) {
	if path == "" {
		return graph.State{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	var state graph.State
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("decoding state %s: %w", path, err)
	}
	return state, nil
}

func writeResult(w io.Writer, format string, state graph.State) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	summary, err := graph.Get[string](state, weather.KeySummary)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, summary)
	return err
}

func newTracerProvider(ctx context.Context, w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("stepflow"),
		),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	), nil
}
