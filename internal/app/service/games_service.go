package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

// GameView es un game persistido más los campos derivados por request
// (fechas legibles, slot del usuario que consulta).
type GameView struct {
	storage.Game

	ISODate      string `json:"isoDate"`
	LongDate     string `json:"date"`
	CalendarDate string `json:"calendarDate"`
	FromNow      string `json:"fromNow"`

	Slot       int  `json:"slot"`
	Signedup   bool `json:"signedup"`
	Waitlisted bool `json:"waitlisted"`
}

// buildGameQuery acota la consulta según la página del dashboard.
func buildGameQuery(guildIDs []string, page string, ident domain.Identity) storage.GameQuery {
	q := storage.GameQuery{GuildIDs: guildIDs}
	now := time.Now().UnixMilli()
	switch page {
	case PageUpcoming, PageCalendar, "":
		q.After = &now
	case PagePastEvents:
		q.Before = &now
	case PageMyGames:
		// sin cota temporal: todo lo del usuario, como GM o anotado
		q.MineID = ident.ID
		q.MineTag = ident.Tag
	}
	return q
}

// projectGame calcula los derivados de un game para el usuario que consulta.
func projectGame(game storage.Game, _ *GuildView, ident domain.Identity, now time.Time) *GameView {
	// entradas viejas sin tag ya no resuelven a nadie; afuera
	reserved := make([]domain.RSVP, 0, len(game.Reserved))
	for _, r := range game.Reserved {
		if strings.TrimSpace(r.Tag) == "" && r.ID == "" {
			continue
		}
		reserved = append(reserved, r)
	}
	game.Reserved = reserved

	view := &GameView{Game: game}

	loc := time.FixedZone(fmt.Sprintf("UTC%+d", game.TimezoneOffset), game.TimezoneOffset*3600)
	t := time.UnixMilli(game.Timestamp).In(loc)
	localNow := now.In(loc)
	view.ISODate = t.Format(time.RFC3339)
	view.LongDate = t.Format("Monday, January 2, 2006 3:04 PM")
	view.CalendarDate = calendarLabel(t, localNow)
	view.FromNow = fromNowLabel(t, localNow)

	// slot = posición 1-based en la lista; 0 si no está. Los datos viejos
	// guardan el tag con "@" adelante, se quita antes de comparar.
	for i, r := range game.Reserved {
		if (ident.ID != "" && r.ID == ident.ID) || (ident.Tag != "" && strings.Replace(r.Tag, "@", "", 1) == ident.Tag) {
			view.Slot = i + 1
			break
		}
	}
	view.Signedup = view.Slot > 0 && view.Slot <= game.Players
	view.Waitlisted = view.Slot > game.Players
	return view
}

// calendarLabel imita el formato "calendario" de los dashboards: hoy/mañana
// con hora, día de la semana si cae dentro de la semana, fecha corta si no.
func calendarLabel(t, now time.Time) string {
	day := func(x time.Time) time.Time {
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, x.Location())
	}
	days := int(day(t).Sub(day(now)).Hours() / 24)
	clock := t.Format("3:04 PM")
	switch {
	case days == 0:
		return "Today at " + clock
	case days == 1:
		return "Tomorrow at " + clock
	case days == -1:
		return "Yesterday at " + clock
	case days > 1 && days < 7:
		return t.Format("Monday") + " at " + clock
	case days < -1 && days > -7:
		return "Last " + t.Format("Monday") + " at " + clock
	default:
		return t.Format("01/02/2006")
	}
}

func fromNowLabel(t, now time.Time) string {
	d := t.Sub(now)
	past := d < 0
	if past {
		d = -d
	}
	var body string
	switch {
	case d < time.Minute:
		body = "a few seconds"
	case d < 2*time.Minute:
		body = "a minute"
	case d < time.Hour:
		body = fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 2*time.Hour:
		body = "an hour"
	case d < 24*time.Hour:
		body = fmt.Sprintf("%d hours", int(d.Hours()))
	case d < 48*time.Hour:
		body = "a day"
	case d < 30*24*time.Hour:
		body = fmt.Sprintf("%d days", int(d.Hours()/24))
	case d < 60*24*time.Hour:
		body = "a month"
	case d < 365*24*time.Hour:
		body = fmt.Sprintf("%d months", int(d.Hours()/(24*30)))
	default:
		body = fmt.Sprintf("%d years", int(d.Hours()/(24*365)))
	}
	if past {
		return body + " ago"
	}
	return "in " + body
}

type GameService struct {
	dir     Directory
	configs GuildConfigStore
	games   GameStore
	notes   Notifier
}

func NewGameService(dir Directory, configs GuildConfigStore, games GameStore, notes Notifier) *GameService {
	return &GameService{dir: dir, configs: configs, games: games, notes: notes}
}

// Game devuelve un game proyectado para el usuario que consulta.
func (s *GameService) Game(ctx context.Context, id string, ident domain.Identity) (*GameView, error) {
	game, err := s.games.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return projectGame(game, nil, ident, time.Now()), nil
}

// ToggleSignup alterna la reserva del usuario: si no figura (por id ni tag)
// se anota al final; si figura, se baja y todos los de atrás suben un slot.
// La escritura es un solo write atómico del documento.
func (s *GameService) ToggleSignup(ctx context.Context, gameID string, ident domain.Identity) (*GameView, error) {
	game, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}

	dropped := false
	next := make([]domain.RSVP, 0, len(game.Reserved)+1)
	for _, r := range game.Reserved {
		if (ident.ID != "" && r.ID == ident.ID) || (ident.Tag != "" && r.Tag == ident.Tag) {
			dropped = true
			continue
		}
		next = append(next, r)
	}
	if !dropped {
		next = append(next, domain.RSVP{ID: ident.ID, Tag: ident.Tag})
	}

	if err := s.games.UpdateReserved(ctx, gameID, next); err != nil {
		return nil, err
	}
	game.Reserved = next

	if dropped {
		cfg, err := s.configs.Get(ctx, game.GuildID)
		if err == nil && cfg.NotifyDropout {
			s.notes.Emit("dropout", map[string]any{
				"game":  game.ID,
				"guild": game.GuildID,
				"tag":   ident.Tag,
			})
		}
	}
	return projectGame(game, nil, ident, time.Now()), nil
}

// SaveGame crea o edita un game. Crear requiere permiso de posteo según la
// config del guild; editar requiere ser el GM o admin.
func (s *GameService) SaveGame(ctx context.Context, ident domain.Identity, game storage.Game) (*GameView, error) {
	guild, err := s.dir.GuildForMember(ctx, game.GuildID, ident.ID)
	if err != nil {
		return nil, err
	}
	member := guild.MemberByID(ident.ID)
	if member == nil {
		return nil, domain.ErrPermissionDenied
	}

	cfg, err := s.configs.Get(ctx, game.GuildID)
	if err != nil {
		return nil, fmt.Errorf("guild config: %w", err)
	}
	isAdmin := member.HasPermission(permManageGuild) ||
		(cfg.ManagerRole != "" && member.HasRoleNamed(guild, cfg.ManagerRole))

	if game.ID != "" {
		prev, err := s.games.Get(ctx, game.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			if prev.DMID != ident.ID && !isAdmin {
				return nil, domain.ErrPermissionDenied
			}
			game.CreatedAt = prev.CreatedAt
		}
	}
	if !isAdmin && !cfg.MemberMayPost(guild, member, game.ChannelID) {
		return nil, domain.ErrPermissionDenied
	}

	if game.Players < 1 {
		return nil, fmt.Errorf("players must be at least 1")
	}
	if game.MinPlayers < 1 {
		game.MinPlayers = 1
	}
	if game.MinPlayers > game.Players {
		return nil, fmt.Errorf("minPlayers cannot exceed players")
	}

	if game.ID == "" {
		game.ID = uuid.NewString()
	}
	if game.DMID == "" {
		game.DMID = ident.ID
	}
	if game.DMTag == "" {
		game.DMTag = ident.Tag
	}
	if game.Template == "" {
		game.Template = cfg.DefaultGameTemplate().ID
	}

	if err := s.games.Upsert(ctx, game); err != nil {
		return nil, err
	}
	return projectGame(game, nil, ident, time.Now()), nil
}

// DeleteGame borra un game; sólo el GM o un admin del guild.
func (s *GameService) DeleteGame(ctx context.Context, ident domain.Identity, id string) error {
	game, err := s.games.Get(ctx, id)
	if err != nil {
		return err
	}
	guild, err := s.dir.GuildForMember(ctx, game.GuildID, ident.ID)
	if err != nil {
		return err
	}
	member := guild.MemberByID(ident.ID)
	if member == nil {
		return domain.ErrPermissionDenied
	}
	cfg, err := s.configs.Get(ctx, game.GuildID)
	if err != nil {
		return fmt.Errorf("guild config: %w", err)
	}
	isAdmin := member.HasPermission(permManageGuild) ||
		(cfg.ManagerRole != "" && member.HasRoleNamed(guild, cfg.ManagerRole))
	if game.DMID != ident.ID && !isAdmin {
		return domain.ErrPermissionDenied
	}
	ok, err := s.games.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}
