package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"

	"nutrivision"
	"nutrivision/pipeline"
	"nutrivision/setup"
)

type Params struct {
	UserID  string           `json:"userId"`
	ChatID  string           `json:"chatId"`
	Message string           `json:"message"`
	Result  string           `json:"result"`
	Profile pipeline.Profile `json:"profile"`
}

func main() {
	ctx := context.Background()

	cfg, err := setup.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	tracerProvider, meterProvider, otelShutdown, err := nutrivision.InitOtel(ctx)
	if err != nil {
		log.Fatalf("SETUP: Failed to initialize OpenTelemetry: %s", err)
	}

	app, err := setup.Build(ctx, cfg, tracerProvider, meterProvider, nutrivision.NewStdoutTurnLogger())
	if err != nil {
		log.Fatalf("SETUP: Failed to build assistant: %s", err)
	}

	fn := func(ctx context.Context, params Params) (pipeline.Result, error) {
		// flush spans and metrics before the execution environment is frozen
		defer func() {
			if err := tracerProvider.ForceFlush(ctx); err != nil {
				slog.Error("SETUP: Failed to flush traces", "error", err)
			}
			if err := meterProvider.ForceFlush(ctx); err != nil {
				slog.Error("SETUP: Failed to flush metrics", "error", err)
			}
		}()

		res, err := app.Responder.Respond(ctx, pipeline.Request{
			UserID:            params.UserID,
			ChatID:            params.ChatID,
			Message:           params.Message,
			RecognitionResult: params.Result,
			Profile:           params.Profile,
		})
		if err != nil {
			slog.Error("RESULT: Error handling turn", "error", err)
			return pipeline.Result{}, err
		}
		return res, nil
	}

	lambda.StartWithOptions(fn, lambda.WithEnableSIGTERM(func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
		if err := app.Close(); err != nil {
			slog.Error("SETUP: Failed to close chat store", "error", err)
		}
	}))
}
