package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-feedback/internal/ai"
	"github.com/spigell/interview-feedback/internal/ai/gemini"
	"github.com/spigell/interview-feedback/internal/ai/openai"
	"github.com/spigell/interview-feedback/internal/feedback"
	"github.com/spigell/interview-feedback/internal/logger"
	"github.com/spigell/interview-feedback/internal/queue"
	"github.com/spigell/interview-feedback/internal/secrets"
	"github.com/spigell/interview-feedback/internal/singleton"
	"github.com/spigell/interview-feedback/internal/store/memory"
	"github.com/spigell/interview-feedback/internal/store/mongostore"
	"github.com/spigell/interview-feedback/internal/store/sqlstore"
)

// openStore couples a store with the function that releases it.
type openStore struct {
	feedback.Store
	close func() error
}

// deps holds the process-wide clients. Each one is built on first use and
// kept until the process exits.
type deps struct {
	config *Config
	logger *zap.Logger

	generator *singleton.Handle[ai.Generator]
	store     *singleton.Handle[*openStore]
	queue     *singleton.Handle[*queue.Client]
}

func newDeps(ctx context.Context, config *Config, log *zap.Logger) *deps {
	d := &deps{config: config, logger: log}

	d.generator = singleton.New(func() (ai.Generator, error) {
		return newGenerator(ctx, config.AI, log)
	})
	d.store = singleton.New(func() (*openStore, error) {
		return newStore(ctx, config.Store, log)
	})
	d.queue = singleton.New(func() (*queue.Client, error) {
		return newQueue(config.Queue, log)
	})

	return d
}

func (d *deps) Generator() (ai.Generator, error) { return d.generator.Get() }

func (d *deps) Store() (feedback.Store, error) {
	s, err := d.store.Get()
	if err != nil {
		return nil, err
	}
	return s.Store, nil
}

func (d *deps) Queue() (*queue.Client, error) { return d.queue.Get() }

// Pipeline assembles the feedback pipeline on top of the shared clients.
func (d *deps) Pipeline() (*feedback.Pipeline, error) {
	generator, err := d.Generator()
	if err != nil {
		return nil, fmt.Errorf("building model client: %w", err)
	}

	store, err := d.Store()
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	cfg := d.config.Pipeline
	rubric := feedback.DefaultRubric
	builder := feedback.NewPromptBuilder(rubric, cfg.MaxTranscriptRunes, cfg.PreserveTurns)

	extractorLogger := logger.WithCommonFields(d.logger, d.config.AI.Provider, generator.Model())
	extractor := feedback.NewScoreExtractor(generator, builder, rubric, cfg.RetryPolicy(), extractorLogger, d.config.AI.MaxLogLength)

	upserter := feedback.NewUpsertManager(store, d.logger)

	return feedback.NewPipeline(builder, extractor, upserter, d.logger), nil
}

// Close releases whatever was opened. Handles that were never used stay untouched.
func (d *deps) Close() {
	if d.store.Initialized() {
		if s, err := d.store.Get(); err == nil && s.close != nil {
			if err := s.close(); err != nil {
				d.logger.Warn("closing store", zap.Error(err))
			}
		}
	}
	if d.queue.Initialized() {
		if q, err := d.queue.Get(); err == nil {
			if err := q.Close(); err != nil {
				d.logger.Warn("closing queue", zap.Error(err))
			}
		}
	}
}

func newGenerator(ctx context.Context, cfg AIConfig, log *zap.Logger) (ai.Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	switch provider {
	case providerGemini:
		src := secrets.Source{Name: "gemini api key", Value: cfg.Gemini.APIKey, File: cfg.Gemini.APIKeyFile}
		load := secrets.Load
		if strings.EqualFold(cfg.Gemini.Backend, gemini.BackendVertex) {
			// Vertex authenticates with application default credentials.
			load = secrets.Optional
		}
		apiKey, err := load(src)
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		g, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:      apiKey,
			Model:       cfg.Gemini.Model,
			Backend:     cfg.Gemini.Backend,
			Project:     cfg.Gemini.Project,
			Location:    cfg.Gemini.Location,
			Temperature: cfg.Gemini.Temperature,
		}, logger.WithCommonFields(log, providerGemini, cfg.Gemini.Model))
		if err != nil {
			return nil, err
		}
		return g, nil

	case providerOpenAI:
		apiKey, err := secrets.Load(secrets.Source{Name: "openai api key", Value: cfg.OpenAI.APIKey, File: cfg.OpenAI.APIKeyFile})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}

		g, err := openai.NewGenerator(openai.Config{
			APIKey:      apiKey,
			Model:       cfg.OpenAI.Model,
			BaseURL:     cfg.OpenAI.BaseURL,
			Temperature: cfg.OpenAI.Temperature,
		}, logger.WithCommonFields(log, providerOpenAI, cfg.OpenAI.Model))
		if err != nil {
			return nil, err
		}
		return g, nil

	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func newStore(ctx context.Context, cfg StoreConfig, log *zap.Logger) (*openStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == storeMemory {
		log.Warn("using in-memory store, feedback is lost on exit")
		return &openStore{Store: memory.New()}, nil
	}

	dsn, err := secrets.Load(secrets.Source{Name: "store dsn", Value: cfg.DSN, File: cfg.DSNFile})
	if err != nil {
		return nil, err
	}

	switch driver {
	case storeMySQL, storePostgres:
		s, err := sqlstore.Open(sqlstore.Config{Driver: driver, DSN: dsn, AutoMigrate: cfg.AutoMigrate}, log)
		if err != nil {
			return nil, err
		}
		return &openStore{Store: s, close: s.Close}, nil

	case storeMongo:
		s, err := mongostore.Open(ctx, mongostore.Config{URI: dsn, Database: cfg.Database, Collection: cfg.Collection}, log)
		if err != nil {
			return nil, err
		}
		return &openStore{Store: s, close: func() error { return s.Close(context.Background()) }}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func newQueue(cfg QueueConfig, log *zap.Logger) (*queue.Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("queue is not configured (set queue.url)")
	}

	url, err := secrets.Load(secrets.Source{Name: "queue url", Value: cfg.URL, File: cfg.URLFile})
	if err != nil {
		return nil, err
	}

	return queue.Dial(queue.Config{URL: url, Queue: cfg.Name, Prefetch: cfg.Prefetch}, log)
}
