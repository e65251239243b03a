package service

import (
	"context"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

// Lo implementa internal/adapters/oauth.Client
type OAuthAPI interface {
	ExchangeCode(ctx context.Context, code string) (domain.Credential, error)
	Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error)
	Identity(ctx context.Context, cred domain.Credential) (domain.Identity, error)
}

// Lo implementa internal/adapters/discord.Directory
type Directory interface {
	ListGuildsForMember(ctx context.Context, memberID string) ([]domain.Guild, error)
	GuildForMember(ctx context.Context, guildID, memberID string) (*domain.Guild, error)
	ChannelAllows(ctx context.Context, guildID, channelID, principalID string, perm int64) (bool, error)
}

// Lo implementa internal/infra/storage.SessionRepo
type SessionStore interface {
	FetchByToken(ctx context.Context, token string) (*storage.Session, error)
	Save(ctx context.Context, s storage.Session) error
	Delete(ctx context.Context, token string) error
}

// Lo implementa internal/infra/storage.GuildConfigRepo
type GuildConfigStore interface {
	Get(ctx context.Context, guildID string) (storage.GuildConfig, error)
	FetchAllByGuilds(ctx context.Context, guildIDs []string) (map[string]storage.GuildConfig, error)
	Upsert(ctx context.Context, c storage.GuildConfig) error
}

// Lo implementa internal/infra/storage.GameRepo
type GameStore interface {
	Get(ctx context.Context, id string) (storage.Game, error)
	FetchByQuery(ctx context.Context, q storage.GameQuery) ([]storage.Game, error)
	Upsert(ctx context.Context, g storage.Game) error
	UpdateReserved(ctx context.Context, id string, reserved []domain.RSVP) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Lo implementa internal/infra/storage.UserRepo
type UserStore interface {
	Get(ctx context.Context, userID string) (storage.UserSettings, error)
	Upsert(ctx context.Context, u storage.UserSettings) error
}

// Lo implementa internal/infra/storage.SiteRepo
type SiteStore interface {
	Get(ctx context.Context, site string) (storage.SiteSettings, error)
	Upsert(ctx context.Context, s storage.SiteSettings) error
}

// Lo implementa internal/adapters/notify.Hub
type Notifier interface {
	Emit(event string, payload any)
}
