package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/internal/ai"
	"github.com/seanblong/codelore/internal/commits"
	"github.com/seanblong/codelore/internal/config"
	"github.com/seanblong/codelore/internal/github"
	"github.com/seanblong/codelore/internal/indexer"
	"github.com/seanblong/codelore/internal/store"
	"github.com/seanblong/codelore/pkg/models"
	"github.com/spf13/pflag"
)

// dirLoader indexes a local checkout instead of cloning.
type dirLoader struct {
	git *indexer.GitLoader
	dir string
}

func (d dirLoader) Load(ctx context.Context, repoURL, token string) ([]indexer.File, error) {
	return d.git.LoadDir(ctx, d.dir)
}

func main() {
	fs := pflag.NewFlagSet("codelore-indexer", pflag.ExitOnError)
	projectID := fs.String("project", "", "Existing project ID to re-index")
	repoURL := fs.String("repo-url", "", "Repository URL of a new project")
	name := fs.String("name", "", "Name of a new project (defaults to the repository name)")
	user := fs.String("user", "local", "Owner of a new project")
	dir := fs.String("dir", "", "Index a local checkout instead of cloning")
	syncCommits := fs.Bool("sync-commits", true, "Summarize recent commits after indexing")

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
	zlog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *projectID == "" && *repoURL == "" {
		zlog.Fatal().Msg("either --project or --repo-url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ai.NewClient(ctx, config.ClientConfig(cfg))
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to create AI client")
	}
	svc := ai.NewService(client)
	zlog.Info().Str("provider", cfg.Provider).Int("embedding_dim", client.Dim()).Msg("AI client initialized")

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer st.Close()
	if err := st.Migrate(ctx, client.Dim()); err != nil {
		zlog.Fatal().Err(err).Msg("failed to migrate database")
	}

	project, err := resolveProject(ctx, st, *projectID, *repoURL, *name, *user)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to resolve project")
	}

	git := indexer.NewGitLoader(cfg.GitRef)
	var loader indexer.RepoLoader = git
	if *dir != "" {
		loader = dirLoader{git: git, dir: *dir}
	}

	ix := indexer.New(st, svc, loader, cfg.Indexer.Concurrency)
	res, err := ix.IndexRepository(ctx, project.ID, project.RepoURL, cfg.GithubToken)
	if err != nil {
		zlog.Fatal().Err(err).Str("project", project.ID).Msg("indexing failed")
	}
	zlog.Info().Str("project", project.ID).Int("files", res.Files).Int("stored", res.Stored).Int("failed", res.Failed).Msg("indexing finished")

	if *syncCommits {
		syncer := commits.NewSyncer(st, github.NewClient(cfg.GithubToken), svc, cfg.Indexer.Concurrency)
		inserted, err := syncer.Sync(ctx, project.ID)
		if err != nil {
			zlog.Error().Err(err).Str("project", project.ID).Msg("commit sync failed")
			return
		}
		zlog.Info().Str("project", project.ID).Int("commits", len(inserted)).Msg("commits synced")
	}
}

func resolveProject(ctx context.Context, st *store.Store, projectID, repoURL, name, user string) (models.Project, error) {
	if projectID != "" {
		return st.GetProject(ctx, projectID)
	}
	repo, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return models.Project{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = repo.Name
	}
	if _, err := st.UpsertUser(ctx, models.User{ID: user}); err != nil {
		return models.Project{}, err
	}
	p, err := st.CreateProject(ctx, user, name, repoURL)
	if err != nil {
		return models.Project{}, err
	}
	zlog.Info().Str("project", p.ID).Str("name", p.Name).Str("owner", user).Msg("project created")
	return p, nil
}
