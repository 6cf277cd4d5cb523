package main

import (
	"context"
	"fmt"
	"os"

	"github.com/debemdeboas/postkey/internal/config"
	"github.com/debemdeboas/postkey/internal/db"
	"github.com/debemdeboas/postkey/internal/model"
	"github.com/debemdeboas/postkey/internal/repository"
)

// importButtons returns how many buttons were new and how many the file held.
func importButtons(ctx context.Context, dbPath string, owner model.OwnerID, file string, bc config.ButtonsConfig) (int, int, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return 0, 0, fmt.Errorf("error reading %s: %w", file, err)
	}

	parsed := model.Flatten(bc.Grammar().Parse(string(content)))
	if len(parsed) == 0 {
		return 0, 0, nil
	}

	sqlite := db.NewSQLite(dbPath)
	if err := sqlite.InitDB(); err != nil {
		return 0, 0, err
	}
	defer sqlite.Close()

	added, err := repository.NewDBSavedButtonRepository(sqlite).UpsertAll(ctx, owner, parsed)
	if err != nil {
		return 0, 0, err
	}
	return added, len(parsed), nil
}
