package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/debemdeboas/postkey/internal/db"
	"github.com/debemdeboas/postkey/internal/model"
)

type DBSavedButtonRepository struct { // implements SavedButtonRepository
	db  db.DB
	now func() time.Time
}

func NewDBSavedButtonRepository(db db.DB) *DBSavedButtonRepository {
	return &DBSavedButtonRepository{
		db:  db,
		now: time.Now,
	}
}

// Upsert is a single statement, so the duplicate check and the insert cannot
// interleave with another writer.
func (r *DBSavedButtonRepository) Upsert(ctx context.Context, owner model.OwnerID, label, target string) (bool, error) {
	res, err := r.db.Exec(ctx,
		`INSERT INTO saved_buttons (owner, label, url, created_at)
		 SELECT ?, ?, ?, ?
		 WHERE NOT EXISTS (SELECT 1 FROM saved_buttons WHERE owner = ? AND label = ? AND url = ?)`,
		string(owner), label, target, r.now().UTC().UnixNano(),
		string(owner), label, target,
	)
	if err != nil {
		return false, fmt.Errorf("error saving button: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error saving button: %w", err)
	}

	repoLogger.Debug().
		Str("owner", string(owner)).
		Str("label", label).
		Bool("inserted", n > 0).
		Msg("Saved button upsert")

	return n > 0, nil
}

func (r *DBSavedButtonRepository) UpsertAll(ctx context.Context, owner model.OwnerID, buttons []model.Button) (int, error) {
	inserted := 0
	for _, b := range buttons {
		ok, err := r.Upsert(ctx, owner, b.Label, b.Target)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (r *DBSavedButtonRepository) Get(ctx context.Context, id model.SavedButtonID, owner model.OwnerID) (*model.SavedButton, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, owner, label, url, created_at FROM saved_buttons WHERE id = ? AND owner = ?`,
		int64(id), string(owner),
	)

	sb, err := scanSavedButton(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sb, nil
}

func (r *DBSavedButtonRepository) List(ctx context.Context, owner model.OwnerID) ([]model.SavedButton, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, owner, label, url, created_at FROM saved_buttons WHERE owner = ? ORDER BY created_at DESC, id DESC`,
		string(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying saved buttons: %w", err)
	}
	defer rows.Close()

	buttons := make([]model.SavedButton, 0)
	for rows.Next() {
		sb, err := scanSavedButton(rows)
		if err != nil {
			return nil, err
		}
		buttons = append(buttons, *sb)
	}

	return buttons, rows.Err()
}

// Update returns false when (id, owner) matches nothing, and ErrDuplicate when
// the new pair already belongs to another of the owner's buttons.
func (r *DBSavedButtonRepository) Update(ctx context.Context, id model.SavedButtonID, owner model.OwnerID, label, target string) (bool, error) {
	res, err := r.db.Exec(ctx,
		`UPDATE saved_buttons SET label = ?, url = ?
		 WHERE id = ? AND owner = ?
		 AND NOT EXISTS (SELECT 1 FROM saved_buttons WHERE owner = ? AND label = ? AND url = ? AND id != ?)`,
		label, target, int64(id), string(owner),
		string(owner), label, target, int64(id),
	)
	if err != nil {
		return false, fmt.Errorf("error updating saved button: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error updating saved button: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	if _, err := r.Get(ctx, id, owner); err == nil {
		return false, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return false, nil
}

func (r *DBSavedButtonRepository) Delete(ctx context.Context, id model.SavedButtonID, owner model.OwnerID) (bool, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM saved_buttons WHERE id = ? AND owner = ?`, int64(id), string(owner))
	if err != nil {
		return false, fmt.Errorf("error deleting saved button: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error deleting saved button: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSavedButton(row rowScanner) (*model.SavedButton, error) {
	var (
		sb        model.SavedButton
		id        int64
		createdAt int64
	)
	if err := row.Scan(&id, &sb.Owner, &sb.Label, &sb.Target, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning saved button: %w", err)
	}
	sb.ID = model.SavedButtonID(id)
	sb.CreatedAt = time.Unix(0, createdAt).UTC()
	return &sb, nil
}
