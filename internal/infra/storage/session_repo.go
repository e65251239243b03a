package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// FetchByToken: token ausente devuelve (nil, nil), no es un error.
func (r *SessionRepo) FetchByToken(ctx context.Context, token string) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx, `
SELECT token, expires_at, last_refreshed, access_token, refresh_token, token_type, scope, expires_in
  FROM sessions
 WHERE token = $1
`, token).Scan(
		&s.Token, &s.ExpiresAt, &s.Credential.LastRefreshed,
		&s.Credential.AccessToken, &s.Credential.RefreshToken,
		&s.Credential.TokenType, &s.Credential.Scope, &s.Credential.ExpiresIn,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save: upsert por token. El token siempre es igual al access_token de la
// credencial; refrescar nunca reusa la clave vieja (eso lo maneja el gateway).
func (r *SessionRepo) Save(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (token, expires_at, last_refreshed, access_token, refresh_token, token_type, scope, expires_in)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (token) DO UPDATE SET
  expires_at     = EXCLUDED.expires_at,
  last_refreshed = EXCLUDED.last_refreshed,
  access_token   = EXCLUDED.access_token,
  refresh_token  = EXCLUDED.refresh_token,
  token_type     = EXCLUDED.token_type,
  scope          = EXCLUDED.scope,
  expires_in     = EXCLUDED.expires_in
`, s.Token, s.ExpiresAt, s.Credential.LastRefreshed,
		s.Credential.AccessToken, s.Credential.RefreshToken,
		s.Credential.TokenType, s.Credential.Scope, s.Credential.ExpiresIn,
	)
	return err
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// PruneExpired borra sesiones vencidas; lo usa el pruner de cmd/server.
func (r *SessionRepo) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
