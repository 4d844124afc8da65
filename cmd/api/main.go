package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/internal/ai"
	"github.com/seanblong/codelore/internal/api"
	"github.com/seanblong/codelore/internal/auth"
	"github.com/seanblong/codelore/internal/commits"
	"github.com/seanblong/codelore/internal/config"
	"github.com/seanblong/codelore/internal/github"
	"github.com/seanblong/codelore/internal/indexer"
	"github.com/seanblong/codelore/internal/meetings"
	"github.com/seanblong/codelore/internal/search"
	"github.com/seanblong/codelore/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("codelore-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting codelore api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ai.NewClient(ctx, config.ClientConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create AI client")
	}
	svc := ai.NewService(client)
	logger.Info().Int("embedding_dim", client.Dim()).Str("embed_model", cfg.EmbedModel).Msg("AI client initialized")

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer st.Close()
	if err := st.Migrate(ctx, client.Dim()); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	ix := indexer.New(st, svc, indexer.NewGitLoader(cfg.GitRef), cfg.Indexer.Concurrency)
	syncer := commits.NewSyncer(st, github.NewClient(cfg.GithubToken), svc, cfg.Indexer.Concurrency)
	answers := search.NewService(svc, st, search.Options{
		TopK:           cfg.Retrieval.TopK,
		MinSimilarity:  cfg.Retrieval.MinSimilarity,
		CandidateLimit: cfg.Retrieval.CandidateLimit,
	})

	var transcriber meetings.Transcriber
	if cfg.AssemblyAIKey != "" {
		transcriber = meetings.NewAssemblyAI(cfg.AssemblyAIKey)
	}
	processor := meetings.NewProcessor(st, meetings.NewExtractor(cfg.AssemblyAIKey, transcriber))

	authn := auth.New(auth.Config{
		JwtSecret:    cfg.Auth.JwtSecret,
		ClientID:     cfg.Auth.GithubClientID,
		ClientSecret: cfg.Auth.GithubClientSecret,
		RedirectURL:  cfg.Auth.GithubRedirectURL,
		AllowedOrg:   cfg.Auth.GithubAllowedOrg,
		Enabled:      cfg.Auth.Enabled,
	})
	if authn.Enabled() {
		logger.Info().Msg("authentication is ENABLED")
	} else {
		logger.Warn().Msg("authentication is DISABLED - running in open mode")
	}

	srv := api.New(api.Deps{
		Store:       st,
		Indexer:     ix,
		Commits:     syncer,
		Answers:     answers,
		Meetings:    processor,
		Auth:        authn,
		GithubToken: cfg.GithubToken,
	})

	handler := hlog.NewHandler(logger)(
		hlog.RequestIDHandler("req_id", "X-Request-Id")(
			hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
				hlog.FromRequest(r).Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
			})(srv.Routes()),
		),
	)

	s := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("api server stopped")
}
