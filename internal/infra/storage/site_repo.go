package storage

import (
	"context"
	"database/sql"
)

type SiteRepo struct{ db *sql.DB }

func NewSiteRepo(db *sql.DB) *SiteRepo { return &SiteRepo{db: db} }

func (r *SiteRepo) Get(ctx context.Context, site string) (SiteSettings, error) {
	var s SiteSettings
	err := r.db.QueryRowContext(ctx, `
SELECT site, maintenance, notice, created_at, updated_at
  FROM site_settings
 WHERE site = $1
`, site).Scan(&s.Site, &s.Maintenance, &s.Notice, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		// crea default
		_, err := r.db.ExecContext(ctx, `
INSERT INTO site_settings (site) VALUES ($1) ON CONFLICT (site) DO NOTHING
`, site)
		if err != nil {
			return SiteSettings{}, err
		}
		return r.Get(ctx, site)
	}
	return s, err
}

func (r *SiteRepo) Upsert(ctx context.Context, s SiteSettings) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO site_settings (site, maintenance, notice)
VALUES ($1,$2,$3)
ON CONFLICT (site) DO UPDATE SET
  maintenance = EXCLUDED.maintenance,
  notice      = EXCLUDED.notice,
  updated_at  = now()
`, s.Site, s.Maintenance, s.Notice)
	return err
}
