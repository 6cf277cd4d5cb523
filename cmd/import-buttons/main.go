// import-buttons seeds an owner's saved-button library from a file written in
// the button grammar, one "Label - https://..." per line. Targets are checked
// against the schemes of the bot's config.
package main

import (
	"context"
	"flag"

	"github.com/debemdeboas/postkey/internal/config"
	"github.com/debemdeboas/postkey/internal/db"
	"github.com/debemdeboas/postkey/internal/logger"
	"github.com/debemdeboas/postkey/internal/model"
	"github.com/debemdeboas/postkey/internal/repository"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	dbPath := flag.String("db", "", "Path to the SQLite database (default: storage.path from the config)")
	owner := flag.String("owner", "", "Owner id (the chat user id)")
	file := flag.String("file", "", "File with one button per line")
	flag.Parse()

	log := logger.New("info", "console")
	config.SetLogger(log)

	if *owner == "" || *file == "" {
		log.Fatal().Msg("Both --owner and --file flags are required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Error loading config")
	}

	log = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	db.SetLogger(log)
	repository.SetLogger(log)

	if *dbPath == "" {
		*dbPath = cfg.Storage.Path
	}

	added, parsed, err := importButtons(context.Background(), *dbPath, model.OwnerID(*owner), *file, cfg.Buttons)
	if err != nil {
		log.Fatal().Err(err).Msg("Error importing buttons")
	}

	log.Info().
		Str("owner", *owner).
		Int("parsed", parsed).
		Int("added", added).
		Msg("Import finished")
}
