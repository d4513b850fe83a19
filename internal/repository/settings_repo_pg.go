package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, settings domain.Settings) error
}

// PGSettingsRepository keeps the settings document in the single row id=1.
type PGSettingsRepository struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) SettingsRepository {
	return &PGSettingsRepository{db: db}
}

func (r *PGSettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := r.db.QueryRow(ctx, `SELECT data FROM settings WHERE id=1`).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Settings{}, ErrNotFound
	}
	return s, err
}

func (r *PGSettingsRepository) Update(ctx context.Context, settings domain.Settings) error {
	_, err := r.db.Exec(ctx, `INSERT INTO settings (id, data) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, settings)
	return err
}

var _ SettingsRepository = (*PGSettingsRepository)(nil)
