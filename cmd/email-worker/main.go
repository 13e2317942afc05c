// Package main is the entry point for the email worker Lambda.
//
// The worker drains the email queue: each SQS record carries one
// types.MailRequest, which is delivered through the mailer and recorded in
// the delivery log when DATABASE_URL is set. Retryable failures are reported
// as batch item failures so SQS redelivers only those records.
//
// With APP_ENV=local the worker reads one SQS event as JSON from stdin
// instead of starting the Lambda runtime:
//
//	echo '{"Records":[{"messageId":"1","body":"{...}"}]}' | go run ./cmd/email-worker
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"eventmail/internal/app"
	"eventmail/internal/config"
	"eventmail/internal/types"
	"eventmail/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("email worker initializing (cold start)",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)

	ctx := context.Background()
	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	handler, err := newHandler(ctx, deps)
	if err != nil {
		logger.Error("failed to initialize handler", "error", err)
		os.Exit(1)
	}

	logger.Info("email worker initialized",
		"concurrency", cfg.Worker.Concurrency,
		"delivery_log", deps.Deliveries != nil,
		"metrics", deps.Metrics != nil,
	)

	if cfg.IsLocal() {
		if err := runLocal(ctx, handler, os.Stdin, os.Stdout, logger); err != nil {
			logger.Error("local run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}

// newHandler builds the worker handler and prepares the delivery log table.
func newHandler(ctx context.Context, deps *app.Deps) (*worker.Handler, error) {
	cfg := worker.Config{
		Sender:      deps.Mailer,
		Concurrency: deps.Config.Worker.Concurrency,
		Logger:      types.NewSlogAdapter(deps.Logger),
	}

	if deps.Deliveries != nil {
		if err := deps.Deliveries.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		cfg.Recorder = deps.Deliveries
	}
	if deps.Metrics != nil {
		cfg.Metrics = deps.Metrics
	}

	return worker.NewHandler(cfg), nil
}

// runLocal feeds one SQS event read from in through handler and writes the
// batch response to out.
func runLocal(ctx context.Context, handler *worker.Handler, in io.Reader, out io.Writer, logger *slog.Logger) error {
	payload, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("no input received on stdin")
	}

	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(payload, &sqsEvent); err != nil {
		return fmt.Errorf("parsing stdin as SQS event: %w", err)
	}

	response, err := handler.Handle(ctx, sqsEvent)
	if err != nil {
		return err
	}

	respJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(respJSON))

	logger.Info("local run completed",
		"records_processed", len(sqsEvent.Records),
		"failures", len(response.BatchItemFailures),
	)
	return nil
}
