// Package setup builds the assistant's collaborators from configuration.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"

	"nutrivision"
	"nutrivision/chat"
	"nutrivision/llm"
	"nutrivision/llm/bedrock"
	"nutrivision/llm/mock"
	"nutrivision/llm/ollama"
	"nutrivision/nutrients"
	"nutrivision/recipes"
	"nutrivision/recognition"
	"nutrivision/storage"
)

const (
	ProviderOllama  = "ollama"
	ProviderBedrock = "bedrock"
	ProviderMock    = "mock"

	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// mockFallback is what the mock provider answers when no rule matches.
const mockFallback = "I can help with nutrition questions. Tell me what you ate."

// S3Client returns an S3 client from the default AWS configuration.
func S3Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// ReferenceStates returns the three reference tables, read from S3 when a
// bucket is configured and from the local filesystem otherwise. In S3 the
// configured paths are used as object keys.
func ReferenceStates(cfg nutrivision.AssistantConfig, s3Client *s3.Client) (names, components, recipeTable storage.State) {
	if cfg.ReferenceS3Bucket != "" && s3Client != nil {
		return storage.NewS3State(s3Client, cfg.ReferenceS3Bucket, cfg.FoodNamesPath),
			storage.NewS3State(s3Client, cfg.ReferenceS3Bucket, cfg.ComponentValuesPath),
			storage.NewS3State(s3Client, cfg.ReferenceS3Bucket, cfg.RecipesPath)
	}
	return storage.NewFileState(cfg.FoodNamesPath),
		storage.NewFileState(cfg.ComponentValuesPath),
		storage.NewFileState(cfg.RecipesPath)
}

// Reference loads the nutrient index and the recipe table. A missing recipe
// table is not fatal; recipe turns then fall back to best-effort answers.
func Reference(ctx context.Context, names, components, recipeTable storage.State, encoding string) (*nutrients.Index, *recipes.Table, error) {
	index, err := nutrients.Load(ctx, names, components, encoding)
	if err != nil {
		return nil, nil, fmt.Errorf("load nutrient index: %w", err)
	}

	table, err := recipes.Load(ctx, recipeTable)
	if err != nil {
		slog.Warn("SETUP: Recipe table unavailable, continuing without recipes", "error", err)
		table = recipes.NewTable(nil)
	}
	return index, table, nil
}

// Model builds the configured chat model wrapped in a tracing decorator.
func Model(ctx context.Context, mc nutrivision.ModelConfig, ac nutrivision.AssistantConfig, tracer trace.Tracer) (llm.ChatModel, error) {
	var (
		model llm.ChatModel
		err   error
	)

	switch strings.ToLower(mc.Provider) {
	case ProviderOllama, "":
		model, err = ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: ac.BaseOllamaEndpoint,
			ModelID:      mc.ModelID,
			Temperature:  float64(mc.Temperature),
			TopP:         float64(mc.TopP),
			HTTPClient:   http.DefaultClient,
		})
	case ProviderBedrock:
		var brc *bedrockruntime.Client
		brc, err = newBedrockRuntimeClient(ctx)
		if err == nil {
			model = bedrock.NewClient(brc, bedrock.Options{
				ModelID:     mc.ModelID,
				MaxTokens:   mc.MaxTokens,
				Temperature: mc.Temperature,
				TopP:        mc.TopP,
			})
		}
	case ProviderMock:
		model = NewMockModel()
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", mc.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", mc.Provider, err)
	}

	if tracer == nil {
		return model, nil
	}
	return llm.NewTracedModel(model, tracer, mc.Provider), nil
}

// NewMockModel answers every extraction prompt with "none" so that turns
// route to GENERAL unless an image is involved.
func NewMockModel() *mock.Client {
	return mock.NewClient(mockFallback, mock.Rule{Contains: "\nText: ", Reply: "none"})
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// Store opens the configured chat store. The returned cleanup releases it.
func Store(cfg nutrivision.StoreConfig) (chat.Store, func() error, error) {
	nop := func() error { return nil }

	switch strings.ToLower(cfg.Backend) {
	case BackendMemory, "":
		return chat.NewMemoryStore(), nop, nil
	case BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nop, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		s, err := chat.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nop, err
		}
		slog.Info("SETUP: SQLite chat store opened", "path", cfg.SQLitePath)
		return s, s.Close, nil
	case BackendRedis:
		s := chat.NewRedisStore(chat.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
		slog.Info("SETUP: Redis chat store configured", "addr", cfg.RedisAddr)
		return s, s.Close, nil
	default:
		return nil, nop, fmt.Errorf("unknown chat store %q", cfg.Backend)
	}
}

// Images returns where uploaded images are kept: an S3 bucket when
// configured, a local directory otherwise, or nothing.
func Images(cfg nutrivision.StoreConfig, s3Client *s3.Client) storage.ObjectWriter {
	switch {
	case cfg.ImageS3Bucket != "" && s3Client != nil:
		return storage.NewS3Objects(s3Client, cfg.ImageS3Bucket, "images/")
	case cfg.ImageDir != "":
		return storage.NewFileObjects(cfg.ImageDir)
	default:
		return nil
	}
}

// Recognizer returns a recognition client, or nil when no endpoint is configured.
func Recognizer(cfg nutrivision.AssistantConfig) *recognition.Client {
	if cfg.RecognitionEndpoint == "" {
		return nil
	}
	return recognition.NewClient(cfg.RecognitionEndpoint, http.DefaultClient, cfg.ConfidenceThreshold)
}

// TurnLogger opens a JSON turn log. With an empty path a timestamped file
// named after the model is created under ./logs. Turns are buffered and
// written by cleanup.
func TurnLogger(path, modelID string) (*nutrivision.FileTurnLogger, func() error, error) {
	logFile, err := openTurnLog(path, os.O_TRUNC, modelID)
	if err != nil {
		return nil, func() error { return err }, err
	}

	logger := nutrivision.NewFileTurnLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}

// LineTurnLogger appends one JSON line per turn to path as turns happen.
// Used by long-running processes that handle turns concurrently.
func LineTurnLogger(path, modelID string) (*nutrivision.LineTurnLogger, func() error, error) {
	logFile, err := openTurnLog(path, os.O_APPEND, modelID)
	if err != nil {
		return nil, func() error { return err }, err
	}
	return nutrivision.NewLineTurnLogger(logFile), logFile.Close, nil
}

func openTurnLog(path string, mode int, modelID string) (*os.File, error) {
	if path == "" {
		path = nutrivision.NewTurnLogFilePath(modelID)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logFile, nil
}
