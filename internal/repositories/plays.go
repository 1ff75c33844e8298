package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/shared"
)

// PlayRepository implements [models.Repository] for [models.Play] history.
type PlayRepository struct {
	db *sql.DB
}

// NewPlayRepository creates a new [PlayRepository] with the given database connection
func NewPlayRepository(db *sql.DB) *PlayRepository {
	return &PlayRepository{db: db}
}

// Create inserts play with a generated ID.
func (r *PlayRepository) Create(play *models.Play) error {
	if err := play.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	query := `INSERT INTO plays (id, uri, device_id, mode, played_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.Exec(query, id, play.URI().String(), play.DeviceID(), play.Mode().String(), play.CreatedAt()); err != nil {
		return fmt.Errorf("failed to insert play: %w", err)
	}

	play.SetID(id)
	return nil
}

// Get retrieves a play by ID
func (r *PlayRepository) Get(id string) (*models.Play, error) {
	row := r.db.QueryRow(`SELECT id, uri, device_id, mode, played_at FROM plays WHERE id = ?`, id)
	play, err := scanPlay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("play not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query play: %w", err)
	}
	return play, nil
}

// Delete removes a play by ID
func (r *PlayRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM plays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete play: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("play not found: %s", id)
	}
	return nil
}

// List returns plays newest first.
//
// Supported criteria: "uri" (string) and "limit" (int).
func (r *PlayRepository) List(criteria map[string]any) ([]*models.Play, error) {
	query := `SELECT id, uri, device_id, mode, played_at FROM plays WHERE 1 = 1`
	args := []any{}

	if uri, ok := criteria["uri"].(string); ok && uri != "" {
		query += " AND uri = ?"
		args = append(args, uri)
	}

	query += " ORDER BY played_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []*models.Play
	for rows.Next() {
		play, err := scanPlay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		plays = append(plays, play)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plays: %w", err)
	}
	return plays, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlay(s scanner) (*models.Play, error) {
	var (
		id       string
		uri      string
		deviceID string
		mode     string
		playedAt time.Time
	)
	if err := s.Scan(&id, &uri, &deviceID, &mode, &playedAt); err != nil {
		return nil, err
	}

	play := models.NewPlay(models.TrackRef(uri), deviceID, models.ParsePlaybackMode(mode))
	play.SetID(id)
	play.SetCreatedAt(playedAt)
	return play, nil
}
