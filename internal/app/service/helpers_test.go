package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

type fakeOAuth struct {
	mu            sync.Mutex
	refreshes     int
	refreshed     domain.Credential
	refreshErr    error
	identity      domain.Identity
	identityErrs  []error // se consume uno por llamada; nil = éxito
	identityCalls int
}

func (f *fakeOAuth) ExchangeCode(ctx context.Context, code string) (domain.Credential, error) {
	return domain.Credential{AccessToken: "tok-" + code, RefreshToken: "ref-" + code, TokenType: "Bearer"}, nil
}

func (f *fakeOAuth) Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return domain.Credential{}, f.refreshErr
	}
	return f.refreshed, nil
}

func (f *fakeOAuth) Identity(ctx context.Context, cred domain.Credential) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.identityCalls
	f.identityCalls++
	if call < len(f.identityErrs) && f.identityErrs[call] != nil {
		return domain.Identity{}, f.identityErrs[call]
	}
	return f.identity, nil
}

// fakeDir sirve snapshots fijos; allow decide los checks de canal (nil = todo
// permitido).
type fakeDir struct {
	guilds []domain.Guild
	allow  func(guildID, channelID, principalID string, perm int64) bool
}

func (f *fakeDir) ListGuildsForMember(ctx context.Context, memberID string) ([]domain.Guild, error) {
	return f.guilds, nil
}

func (f *fakeDir) GuildForMember(ctx context.Context, guildID, memberID string) (*domain.Guild, error) {
	for i := range f.guilds {
		if f.guilds[i].ID == guildID {
			g := f.guilds[i]
			return &g, nil
		}
	}
	return nil, fmt.Errorf("guild %s: not found", guildID)
}

func (f *fakeDir) ChannelAllows(ctx context.Context, guildID, channelID, principalID string, perm int64) (bool, error) {
	if f.allow == nil {
		return true, nil
	}
	return f.allow(guildID, channelID, principalID, perm), nil
}

type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]storage.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]storage.Session{}}
}

func (f *fakeSessions) FetchByToken(ctx context.Context, token string) (*storage.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSessions) Save(ctx context.Context, s storage.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.Token] = s
	return nil
}

func (f *fakeSessions) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, token)
	return nil
}

type fakeConfigs struct {
	rows map[string]storage.GuildConfig
}

func newFakeConfigs(cfgs ...storage.GuildConfig) *fakeConfigs {
	f := &fakeConfigs{rows: map[string]storage.GuildConfig{}}
	for _, c := range cfgs {
		f.rows[c.GuildID] = c
	}
	return f
}

func (f *fakeConfigs) Get(ctx context.Context, guildID string) (storage.GuildConfig, error) {
	if c, ok := f.rows[guildID]; ok {
		return c, nil
	}
	return storage.NewGuildConfig(guildID), nil
}

func (f *fakeConfigs) FetchAllByGuilds(ctx context.Context, guildIDs []string) (map[string]storage.GuildConfig, error) {
	out := map[string]storage.GuildConfig{}
	for _, id := range guildIDs {
		if c, ok := f.rows[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeConfigs) Upsert(ctx context.Context, c storage.GuildConfig) error {
	f.rows[c.GuildID] = c
	return nil
}

type fakeGames struct {
	rows      map[string]storage.Game
	results   []storage.Game
	lastQuery storage.GameQuery
}

func newFakeGames(games ...storage.Game) *fakeGames {
	f := &fakeGames{rows: map[string]storage.Game{}, results: games}
	for _, g := range games {
		f.rows[g.ID] = g
	}
	return f
}

func (f *fakeGames) Get(ctx context.Context, id string) (storage.Game, error) {
	g, ok := f.rows[id]
	if !ok {
		return storage.Game{}, storage.ErrNotFound
	}
	return g, nil
}

func (f *fakeGames) FetchByQuery(ctx context.Context, q storage.GameQuery) ([]storage.Game, error) {
	f.lastQuery = q
	return f.results, nil
}

func (f *fakeGames) Upsert(ctx context.Context, g storage.Game) error {
	f.rows[g.ID] = g
	return nil
}

func (f *fakeGames) UpdateReserved(ctx context.Context, id string, reserved []domain.RSVP) error {
	g, ok := f.rows[id]
	if !ok {
		return storage.ErrNotFound
	}
	g.Reserved = reserved
	f.rows[id] = g
	return nil
}

func (f *fakeGames) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := f.rows[id]
	delete(f.rows, id)
	return ok, nil
}

type fakeUsers struct {
	rows map[string]storage.UserSettings
}

func newFakeUsers() *fakeUsers { return &fakeUsers{rows: map[string]storage.UserSettings{}} }

func (f *fakeUsers) Get(ctx context.Context, userID string) (storage.UserSettings, error) {
	if u, ok := f.rows[userID]; ok {
		return u, nil
	}
	return storage.UserSettings{UserID: userID, Lang: "en"}, nil
}

func (f *fakeUsers) Upsert(ctx context.Context, u storage.UserSettings) error {
	f.rows[u.UserID] = u
	return nil
}

type fakeSite struct {
	rows map[string]storage.SiteSettings
}

func newFakeSite() *fakeSite { return &fakeSite{rows: map[string]storage.SiteSettings{}} }

func (f *fakeSite) Get(ctx context.Context, site string) (storage.SiteSettings, error) {
	if s, ok := f.rows[site]; ok {
		return s, nil
	}
	return storage.SiteSettings{Site: site}, nil
}

func (f *fakeSite) Upsert(ctx context.Context, s storage.SiteSettings) error {
	f.rows[s.Site] = s
	return nil
}

type fakeNotes struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotes) Emit(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// guild de prueba con @everyone, un rol manager y tres canales de texto
func testGuild(id string, member domain.Member) domain.Guild {
	return domain.Guild{
		ID:   id,
		Name: "Guild " + id,
		Roles: []domain.Role{
			{ID: "r-everyone", Name: "@everyone"},
			{ID: "r-manager", Name: "Organizer"},
		},
		Channels: []domain.Channel{
			{ID: id + "-ch1", Name: "general", Type: "text"},
			{ID: id + "-ch2", Name: "anuncios", Type: "text"},
			{ID: id + "-ch3", Name: "mesa", Type: "text"},
		},
		Members: []domain.Member{member},
	}
}
