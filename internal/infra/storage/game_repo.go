package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	pq "github.com/lib/pq"

	"github.com/jose-valero/gamenight-bot/internal/domain"
)

type GameRepo struct{ db *sql.DB }

func NewGameRepo(db *sql.DB) *GameRepo { return &GameRepo{db: db} }

const gameCols = `id, guild_id, channel_id, adventure, description, dm_id, dm_tag, dm_raw,
       template, players, min_players, reserved, reserved_raw, where_at,
       timestamp_ms, timezone_offset, game_date, game_time, hide_date,
       method, frequency, weekdays, x_weeks, clear_reserved, created_at, updated_at`

func scanGame(row interface{ Scan(...any) error }) (Game, error) {
	var g Game
	var reserved []byte
	err := row.Scan(
		&g.ID, &g.GuildID, &g.ChannelID, &g.Adventure, &g.Description,
		&g.DMID, &g.DMTag, &g.DMRaw, &g.Template, &g.Players, &g.MinPlayers,
		&reserved, &g.ReservedRaw, &g.Where, &g.Timestamp, &g.TimezoneOffset,
		&g.Date, &g.Time, &g.HideDate, &g.Method, &g.Frequency,
		pq.Array(&g.Weekdays), &g.XWeeks, &g.ClearReserved, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return Game{}, err
	}
	if err := json.Unmarshal(reserved, &g.Reserved); err != nil {
		return Game{}, fmt.Errorf("game reserved: %w", err)
	}
	return g, nil
}

func (r *GameRepo) Get(ctx context.Context, id string) (Game, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+gameCols+`
  FROM games
 WHERE id = $1
`, id)
	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return Game{}, ErrNotFound
	}
	return g, err
}

// FetchByQuery: alcance por guilds + cotas de timestamp + alternación "mine".
// La cláusula ILIKE sobre reserved_raw (y sobre el JSON serializado) replica el
// match histórico por fragmento de tag en reservas freeform; no la quites.
func (r *GameRepo) FetchByQuery(ctx context.Context, q GameQuery) ([]Game, error) {
	if len(q.GuildIDs) == 0 {
		return nil, nil
	}
	var after, before sql.NullInt64
	if q.After != nil {
		after = sql.NullInt64{Int64: *q.After, Valid: true}
	}
	if q.Before != nil {
		before = sql.NullInt64{Int64: *q.Before, Valid: true}
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+gameCols+`
  FROM games
 WHERE guild_id = ANY($1)
   AND ($2::bigint IS NULL OR timestamp_ms > $2)
   AND ($3::bigint IS NULL OR timestamp_ms < $3)
   AND (
         $4::text = ''
      OR dm_id  = $4
      OR dm_tag = $5
      OR dm_raw = $5
      OR reserved @> jsonb_build_array(jsonb_build_object('id', $4::text))
      OR reserved @> jsonb_build_array(jsonb_build_object('tag', $5::text))
      OR reserved_raw   ILIKE '%' || $5 || '%'
      OR reserved::text ILIKE '%' || $5 || '%'
   )
 ORDER BY timestamp_ms ASC
`, pq.Array(q.GuildIDs), after, before, q.MineID, q.MineTag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GameRepo) Upsert(ctx context.Context, g Game) error {
	reserved, err := json.Marshal(g.Reserved)
	if err != nil {
		return err
	}
	if g.Weekdays == nil {
		g.Weekdays = make([]bool, 7)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO games
  (id, guild_id, channel_id, adventure, description, dm_id, dm_tag, dm_raw,
   template, players, min_players, reserved, reserved_raw, where_at,
   timestamp_ms, timezone_offset, game_date, game_time, hide_date,
   method, frequency, weekdays, x_weeks, clear_reserved)
VALUES
  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
ON CONFLICT (id) DO UPDATE SET
  guild_id        = EXCLUDED.guild_id,
  channel_id      = EXCLUDED.channel_id,
  adventure       = EXCLUDED.adventure,
  description     = EXCLUDED.description,
  dm_id           = EXCLUDED.dm_id,
  dm_tag          = EXCLUDED.dm_tag,
  dm_raw          = EXCLUDED.dm_raw,
  template        = EXCLUDED.template,
  players         = EXCLUDED.players,
  min_players     = EXCLUDED.min_players,
  reserved        = EXCLUDED.reserved,
  reserved_raw    = EXCLUDED.reserved_raw,
  where_at        = EXCLUDED.where_at,
  timestamp_ms    = EXCLUDED.timestamp_ms,
  timezone_offset = EXCLUDED.timezone_offset,
  game_date       = EXCLUDED.game_date,
  game_time       = EXCLUDED.game_time,
  hide_date       = EXCLUDED.hide_date,
  method          = EXCLUDED.method,
  frequency       = EXCLUDED.frequency,
  weekdays        = EXCLUDED.weekdays,
  x_weeks         = EXCLUDED.x_weeks,
  clear_reserved  = EXCLUDED.clear_reserved,
  updated_at      = now()
`, g.ID, g.GuildID, g.ChannelID, g.Adventure, g.Description, g.DMID, g.DMTag, g.DMRaw,
		g.Template, g.Players, g.MinPlayers, reserved, g.ReservedRaw, g.Where,
		g.Timestamp, g.TimezoneOffset, g.Date, g.Time, g.HideDate,
		g.Method, g.Frequency, pq.Array(g.Weekdays), g.XWeeks, g.ClearReserved)
	return err
}

// UpdateReserved: escritura atómica de un solo documento para el RSVP; no hay
// transacciones multi-paso sobre games.
func (r *GameRepo) UpdateReserved(ctx context.Context, id string, reserved []domain.RSVP) error {
	if reserved == nil {
		reserved = []domain.RSVP{}
	}
	raw, err := json.Marshal(reserved)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE games SET reserved = $2, updated_at = now() WHERE id = $1
`, id, raw)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GameRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
