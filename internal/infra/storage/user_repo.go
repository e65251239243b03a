package storage

import (
	"context"
	"database/sql"
)

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Get crea la fila default si el usuario no tiene settings todavía.
func (r *UserRepo) Get(ctx context.Context, userID string) (UserSettings, error) {
	var u UserSettings
	err := r.db.QueryRowContext(ctx, `
SELECT user_id, lang, pronouns, created_at, updated_at
  FROM user_settings
 WHERE user_id = $1
`, userID).Scan(&u.UserID, &u.Lang, &u.Pronouns, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO user_settings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING
`, userID)
		if err != nil {
			return UserSettings{}, err
		}
		return r.Get(ctx, userID)
	}
	return u, err
}

func (r *UserRepo) Upsert(ctx context.Context, u UserSettings) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO user_settings (user_id, lang, pronouns)
VALUES ($1,$2,$3)
ON CONFLICT (user_id) DO UPDATE SET
  lang       = EXCLUDED.lang,
  pronouns   = EXCLUDED.pronouns,
  updated_at = now()
`, u.UserID, u.Lang, u.Pronouns)
	return err
}
