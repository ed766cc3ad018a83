// Package app wires all Sonara subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API until the context is cancelled,
// and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithMailer). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sonara-health/sonara/internal/auth"
	"github.com/sonara-health/sonara/internal/config"
	"github.com/sonara-health/sonara/internal/health"
	"github.com/sonara-health/sonara/internal/httpapi"
	"github.com/sonara-health/sonara/internal/insights"
	"github.com/sonara-health/sonara/internal/mailer"
	"github.com/sonara-health/sonara/internal/session"
	"github.com/sonara-health/sonara/internal/transcribe"
	"github.com/sonara-health/sonara/pkg/audio"
	"github.com/sonara-health/sonara/pkg/provider/analysis"
	"github.com/sonara-health/sonara/pkg/provider/embeddings"
	"github.com/sonara-health/sonara/pkg/provider/stt"
	"github.com/sonara-health/sonara/pkg/store"
	"github.com/sonara-health/sonara/pkg/store/postgres"
)

// defaultEmbeddingDimensions matches OpenAI text-embedding-3-small.
const defaultEmbeddingDimensions = 1536

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT        stt.Provider
	Analysis   analysis.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes and serves the Sonara HTTP API.
type App struct {
	cfg       *config.Config
	providers *Providers

	store    store.Store
	mail     mailer.Mailer
	signer   *auth.TokenSigner
	recorder *session.Recorder
	server   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a session and user store instead of connecting to
// PostgreSQL from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMailer injects a mailer instead of creating an SMTP one from config.
func WithMailer(m mailer.Mailer) Option {
	return func(a *App) { a.mail = m }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry); STT and
// Analysis are required, Embeddings is optional and only disables
// semantic search when absent.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil {
		return nil, errors.New("app: an stt provider is required")
	}
	if providers.Analysis == nil {
		return nil, errors.New("app: an analysis provider is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initAuth(); err != nil {
		return nil, fmt.Errorf("app: init auth: %w", err)
	}
	a.initMailer()
	a.initServer()

	return a, nil
}

// initStore connects the PostgreSQL store or uses an injected one.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		return errors.New("store.postgres_dsn is required when no store is injected")
	}

	dims := a.cfg.Store.EmbeddingDimensions
	if dims == 0 {
		dims = defaultEmbeddingDimensions
	}

	pg, err := postgres.NewStore(ctx, dsn, dims)
	if err != nil {
		return err
	}
	a.store = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

// initAuth builds the token signer from the configured secret.
func (a *App) initAuth() error {
	opts := []auth.SignerOption{}
	if a.cfg.Auth.TokenTTL > 0 {
		opts = append(opts, auth.WithTTL(a.cfg.Auth.TokenTTL))
	}
	signer, err := auth.NewTokenSigner([]byte(a.cfg.Auth.TokenSecret), opts...)
	if err != nil {
		return err
	}
	a.signer = signer
	return nil
}

// initMailer creates the SMTP mailer when a relay is configured. Without
// one, registration succeeds but accounts cannot be verified.
func (a *App) initMailer() {
	if a.mail != nil || a.cfg.Mailer.SMTPHost == "" {
		return
	}
	a.mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     a.cfg.Mailer.SMTPHost,
		Port:     a.cfg.Mailer.SMTPPort,
		Username: a.cfg.Mailer.Username,
		Password: a.cfg.Mailer.Password,
		From:     a.cfg.Mailer.From,
		BaseURL:  a.cfg.Server.BaseURL,
	})
}

// initServer assembles the processing pipeline and the HTTP server.
func (a *App) initServer() {
	var audioOpts []audio.Option
	if a.cfg.Audio.FFmpegBinary != "" {
		audioOpts = append(audioOpts, audio.WithFFmpegBinary(a.cfg.Audio.FFmpegBinary))
	}
	normalizer := audio.NewNormalizer(audioOpts...)

	var trOpts []transcribe.Option
	if a.cfg.Transcription.SegmentSeconds > 0 {
		trOpts = append(trOpts, transcribe.WithSegmentDuration(
			time.Duration(a.cfg.Transcription.SegmentSeconds)*time.Second))
	}
	if a.cfg.Transcription.Language != "" {
		trOpts = append(trOpts, transcribe.WithLanguage(a.cfg.Transcription.Language))
	}
	transcriber := transcribe.New(a.providers.STT, trOpts...)

	extractor := insights.NewExtractor(guardAnalysis(a.providers.Analysis))
	a.recorder = session.NewRecorder(a.store)

	var checkers []health.Checker
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.StoreChecker("postgres", p))
	}

	var maxUpload int64
	if a.cfg.Audio.MaxUploadMB > 0 {
		maxUpload = int64(a.cfg.Audio.MaxUploadMB) << 20
	}

	api := httpapi.NewServer(httpapi.Deps{
		Normalizer:     normalizer,
		Transcriber:    transcriber,
		Extractor:      extractor,
		Embedder:       a.providers.Embeddings,
		Recorder:       a.recorder,
		Store:          a.store,
		Signer:         a.signer,
		Mailer:         a.mail,
		Health:         health.New(checkers...),
		MaxUploadBytes: maxUpload,
	})

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves the HTTP API until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			slog.Info("listening with TLS", "addr", a.server.Addr)
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("listening", "addr", a.server.Addr)
			err = a.server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	return nil
}

// Shutdown releases all resources. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		if ids := a.recorder.Pending(); len(ids) > 0 {
			slog.Warn("shutting down with unsaved sessions", "count", len(ids), "ids", ids)
		}
		for _, c := range a.closers {
			if err := c(); err != nil {
				slog.Error("close subsystem", "error", err)
			}
		}
	})
}
