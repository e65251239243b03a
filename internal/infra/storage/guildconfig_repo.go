package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	pq "github.com/lib/pq"
)

type GuildConfigRepo struct{ db *sql.DB }

func NewGuildConfigRepo(db *sql.DB) *GuildConfigRepo { return &GuildConfigRepo{db: db} }

const guildConfigCols = `guild_id, hidden, manager_role, password, lang, notify_dropout, channels, game_templates, created_at, updated_at`

func scanGuildConfig(row interface{ Scan(...any) error }) (GuildConfig, error) {
	var c GuildConfig
	var channels, templates []byte
	err := row.Scan(
		&c.GuildID, &c.Hidden, &c.ManagerRole, &c.Password, &c.Lang, &c.NotifyDropout,
		&channels, &templates, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return GuildConfig{}, err
	}
	if err := json.Unmarshal(channels, &c.Channels); err != nil {
		return GuildConfig{}, fmt.Errorf("guild config channels: %w", err)
	}
	if err := json.Unmarshal(templates, &c.GameTemplates); err != nil {
		return GuildConfig{}, fmt.Errorf("guild config templates: %w", err)
	}
	return c, nil
}

// Get crea la fila default si no existe todavía (primer acceso al guild).
func (r *GuildConfigRepo) Get(ctx context.Context, guildID string) (GuildConfig, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+guildConfigCols+`
  FROM guild_configs
 WHERE guild_id = $1
`, guildID)
	c, err := scanGuildConfig(row)
	if err == sql.ErrNoRows {
		// crea default
		_, err := r.db.ExecContext(ctx, `
INSERT INTO guild_configs (guild_id) VALUES ($1) ON CONFLICT (guild_id) DO NOTHING
`, guildID)
		if err != nil {
			return GuildConfig{}, err
		}
		return r.Get(ctx, guildID)
	}
	return c, err
}

// FetchAllByGuilds trae las configs de todos los ids en una sola consulta.
// Los guilds sin fila simplemente no aparecen; el caller usa el default.
func (r *GuildConfigRepo) FetchAllByGuilds(ctx context.Context, guildIDs []string) (map[string]GuildConfig, error) {
	out := map[string]GuildConfig{}
	if len(guildIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+guildConfigCols+`
  FROM guild_configs
 WHERE guild_id = ANY($1)
`, pq.Array(guildIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanGuildConfig(rows)
		if err != nil {
			return nil, err
		}
		out[c.GuildID] = c
	}
	return out, rows.Err()
}

func (r *GuildConfigRepo) Upsert(ctx context.Context, c GuildConfig) error {
	channels, err := json.Marshal(c.Channels)
	if err != nil {
		return err
	}
	templates, err := json.Marshal(c.GameTemplates)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO guild_configs
  (guild_id, hidden, manager_role, password, lang, notify_dropout, channels, game_templates)
VALUES
  ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (guild_id) DO UPDATE SET
  hidden         = EXCLUDED.hidden,
  manager_role   = EXCLUDED.manager_role,
  password       = EXCLUDED.password,
  lang           = EXCLUDED.lang,
  notify_dropout = EXCLUDED.notify_dropout,
  channels       = EXCLUDED.channels,
  game_templates = EXCLUDED.game_templates,
  updated_at     = now()
`, c.GuildID, c.Hidden, c.ManagerRole, c.Password, c.Lang, c.NotifyDropout, channels, templates)
	return err
}
