package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/postkey/internal/config"
	"github.com/debemdeboas/postkey/internal/controller"
	"github.com/debemdeboas/postkey/internal/db"
	"github.com/debemdeboas/postkey/internal/dispatch"
	"github.com/debemdeboas/postkey/internal/draft"
	"github.com/debemdeboas/postkey/internal/logger"
	"github.com/debemdeboas/postkey/internal/metrics"
	"github.com/debemdeboas/postkey/internal/picker"
	"github.com/debemdeboas/postkey/internal/publish"
	"github.com/debemdeboas/postkey/internal/repository"
	"github.com/debemdeboas/postkey/internal/transport/telegram"
	"github.com/debemdeboas/postkey/internal/util/compression"
)

const defaultConfigPath = "config.yaml"

var mainLogger zerolog.Logger

func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "postkey",
		Short:         "Compose link-button posts in chat and publish them by key",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the YAML config file")

	cmd.AddCommand(
		newServeCommand(&configPath),
		newPurgeCommand(&configPath),
	)

	return cmd
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config and points every package at a logger built from it.
func setup(configPath string) (*config.Config, error) {
	config.SetLogger(logger.New("info", "console"))

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	l := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	mainLogger = logger.Component(l, "main")
	config.SetLogger(logger.Component(l, "config"))
	db.SetLogger(logger.Component(l, "db"))
	repository.SetLogger(logger.Component(l, "repository"))
	metrics.SetLogger(logger.Component(l, "metrics"))
	draft.SetLogger(logger.Component(l, "draft"))
	picker.SetLogger(logger.Component(l, "picker"))
	publish.SetLogger(logger.Component(l, "publish"))
	controller.SetLogger(logger.Component(l, "controller"))
	dispatch.SetLogger(logger.Component(l, "dispatch"))
	telegram.SetLogger(logger.Component(l, "telegram"))

	return cfg, nil
}

type store struct {
	db        *db.SQLite
	templates *repository.DBTemplateRepository
	saved     *repository.DBSavedButtonRepository
}

func openStore(cfg *config.Config) (*store, error) {
	compressor, err := compression.New(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}

	sqlite := db.NewSQLite(cfg.Storage.Path)
	if err := sqlite.InitDB(); err != nil {
		return nil, err
	}

	return &store{
		db: sqlite,
		templates: repository.NewDBTemplateRepository(sqlite,
			repository.WithCompressor(compressor),
			repository.WithKeyAttempts(cfg.Templates.KeyAttempts),
		),
		saved: repository.NewDBSavedButtonRepository(sqlite),
	}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}
