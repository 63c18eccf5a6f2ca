package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/unalkalkan/VoiceReader/internal/config"
	"github.com/unalkalkan/VoiceReader/internal/library"
	"github.com/unalkalkan/VoiceReader/internal/parser"
	"github.com/unalkalkan/VoiceReader/internal/reader"
	"github.com/unalkalkan/VoiceReader/internal/speech"
	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/internal/store"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// app holds the components shared by every command
type app struct {
	cfg       *types.Config
	logger    *slog.Logger
	blobs     storage.Adapter
	store     store.Store
	engines   *speech.Registry
	extractor *parser.DefaultFactory
	session   *reader.Session
	importer  *library.Importer
}

func newApp(ctx context.Context, cfg *types.Config) (*app, error) {
	logger := config.InitLogger(cfg.Log)
	a := &app{
		cfg:       cfg,
		logger:    logger,
		engines:   speech.NewRegistry(),
		extractor: parser.NewFactory(),
	}

	var err error
	a.blobs, err = storage.NewAdapter(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage adapter: %w", err)
	}

	if cfg.Store.Driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DSN), 0755); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	a.store, err = store.Open(cfg.Store, a.blobs)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := a.engines.InitializeEngines(cfg.Speech, a.blobs); err != nil {
		a.Close()
		return nil, err
	}
	engine, err := a.engines.Default(cfg.Speech)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to select speech engine: %w", err)
	}

	opts := reader.Options{
		Voice: cfg.Playback.Voice,
		Rate:  cfg.Playback.Rate,
		Pitch: cfg.Playback.Pitch,
	}
	if engineCfg, ok := config.EngineConfig(cfg, engine.Name()); ok {
		opts.Language = engineCfg.Language
	}
	a.session = reader.NewSession(a.extractor, a.store, engine, opts, logger)
	if err := a.session.Initialize(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	a.importer = library.NewImporter(a.extractor, a.store, a.blobs, cfg.Library.Concurrency, logger)
	a.importer.OnImported(func(types.DocumentRecord) {
		if err := a.session.RefreshRecent(context.Background()); err != nil {
			logger.Warn("failed to refresh recent documents", slog.Any("error", err))
		}
	})

	logger.Info("Application initialized",
		slog.String("storage_adapter", cfg.Storage.Adapter),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("speech_engine", engine.Name()),
		slog.Any("engines", a.engines.List()))

	return a, nil
}

// Close releases every component that was opened
func (a *app) Close() error {
	var errs []error
	if a.session != nil {
		a.session.Close()
	}
	if a.engines != nil {
		errs = append(errs, a.engines.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.blobs != nil {
		errs = append(errs, a.blobs.Close())
	}
	return errors.Join(errs...)
}

// openFile loads a local file into the session keyed by its absolute path
func (a *app) openFile(ctx context.Context, path, mimeType string) (*types.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	if mimeType == "" {
		mimeType = parser.MIMEForPath(abs)
	}
	return a.session.LoadDocument(ctx, abs, mimeType, f)
}
