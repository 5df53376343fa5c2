package setup

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"nutrivision"
	"nutrivision/chat"
	"nutrivision/pipeline"
)

// Config groups everything read from the environment.
type Config struct {
	Model     nutrivision.ModelConfig
	Assistant nutrivision.AssistantConfig
	Store     nutrivision.StoreConfig
	Server    nutrivision.ServerConfig
}

// LoadConfig decodes every config struct from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	for _, target := range []any{&cfg.Model, &cfg.Assistant, &cfg.Store, &cfg.Server} {
		if err := envdecode.Decode(target); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// App is a fully wired assistant.
type App struct {
	Assistant *pipeline.Assistant
	// Responder is Assistant with metrics recorded around it.
	Responder  pipeline.Responder
	Store      chat.Store
	Recognizer pipeline.Recognizer

	closers []func() error
}

// Close releases the chat store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Build loads the reference data and wires the assistant with its model,
// store, recognizer and image storage.
func Build(ctx context.Context, cfg Config, tp trace.TracerProvider, mp metric.MeterProvider, logger nutrivision.TurnLogger) (*App, error) {
	var s3Client *s3.Client
	if cfg.Assistant.ReferenceS3Bucket != "" || cfg.Store.ImageS3Bucket != "" {
		c, err := S3Client(ctx)
		if err != nil {
			return nil, err
		}
		s3Client = c
	}

	names, components, recipeTable := ReferenceStates(cfg.Assistant, s3Client)
	index, table, err := Reference(ctx, names, components, recipeTable, cfg.Assistant.ReferenceEncoding)
	if err != nil {
		return nil, err
	}

	model, err := Model(ctx, cfg.Model, cfg.Assistant, tp.Tracer(nutrivision.TracerNameLLM))
	if err != nil {
		return nil, err
	}

	store, closeStore, err := Store(cfg.Store)
	if err != nil {
		return nil, err
	}
	app := &App{Store: store, closers: []func() error{closeStore}}

	if rc := Recognizer(cfg.Assistant); rc != nil {
		app.Recognizer = rc
	}

	app.Assistant, err = pipeline.NewAssistant(pipeline.Options{
		Model:           model,
		Index:           index,
		Recipes:         table,
		Store:           store,
		Recognizer:      app.Recognizer,
		Images:          Images(cfg.Store, s3Client),
		Logger:          logger,
		Tracer:          tp.Tracer(nutrivision.TracerNamePipeline),
		FuzzyThreshold:  cfg.Assistant.FuzzyThreshold,
		HistoryTurns:    cfg.Assistant.HistoryTurns,
		IgnoredMentions: cfg.Assistant.IgnoredMentions,
	})
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}

	app.Responder, err = pipeline.NewInstrumentedAssistant(app.Assistant, mp.Meter(nutrivision.TracerNamePipeline))
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}

	slog.Info("SETUP: Assistant ready",
		"provider", cfg.Model.Provider,
		"model", cfg.Model.ModelID,
		"store", cfg.Store.Backend,
		"recognition", app.Recognizer != nil,
		"foods", index.Len(),
		"recipes", table.Len(),
	)
	return app, nil
}
