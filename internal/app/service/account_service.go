package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

// Páginas del dashboard que alteran el alcance de la consulta de games.
const (
	PageUpcoming   = "upcoming"
	PageMyGames    = "my-games"
	PageCalendar   = "calendar"
	PageServer     = "manage-server"
	PagePastEvents = "past-events"
)

// una credencial sin refresh hace 12h o más se considera vieja
const staleAfter = 12 * time.Hour

type AccountOptions struct {
	Guilds bool
	Games  bool
	Page   string
	Search string
}

type Account struct {
	User   UserView     `json:"user"`
	Guilds []*GuildView `json:"guilds"`
}

type UserView struct {
	domain.Identity
	Settings storage.UserSettings `json:"settings"`
}

// GuildView es la vista normalizada de un guild para el usuario que resuelve
// la cuenta. Derivada por request; no se persiste ni se cachea.
type GuildView struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Icon                 string              `json:"icon"`
	Permission           bool                `json:"permission"`
	IsAdmin              bool                `json:"isAdmin"`
	Member               *domain.Member      `json:"member"`
	Roles                []domain.Role       `json:"roles"`
	UserRoles            []string            `json:"userRoles"`
	ChannelCategories    []domain.Channel    `json:"channelCategories"`
	Channels             []domain.Channel    `json:"channels"`
	AnnouncementChannels []domain.Channel    `json:"announcementChannels"`
	Config               storage.GuildConfig `json:"config"`
	Games                []*GameView         `json:"games"`
}

type AccountService struct {
	oauth    OAuthAPI
	dir      Directory
	configs  GuildConfigStore
	games    GameStore
	users    UserStore
	cdnBase  string
	ownerTag string // config.OwnerTag: bypassa el filtro de guilds ocultos
}

func NewAccountService(oauth OAuthAPI, dir Directory, configs GuildConfigStore, games GameStore, users UserStore, ownerTag string) *AccountService {
	return &AccountService{
		oauth:    oauth,
		dir:      dir,
		configs:  configs,
		games:    games,
		users:    users,
		cdnBase:  "https://cdn.discordapp.com",
		ownerTag: ownerTag,
	}
}

// ResolveAccount arma la vista completa de la cuenta. Devuelve también la
// credencial vigente: puede diferir de la de entrada si hubo refresh (el
// caller debe devolverle el token nuevo al front).
//
// Reintento acotado: si la llamada de identidad falla con OAuthError se hace
// exactamente UN refresh y UN reintento; cualquier otro fallo, o un segundo
// fallo, propaga. Nada de recursión.
func (s *AccountService) ResolveAccount(ctx context.Context, cred domain.Credential, opt AccountOptions) (*Account, domain.Credential, error) {
	if time.Since(time.Unix(cred.LastRefreshed, 0)) >= staleAfter {
		next, err := s.oauth.Refresh(ctx, cred)
		if err != nil {
			return nil, cred, err
		}
		cred = next
	}

	acct, err := s.resolveOnce(ctx, cred, opt)
	if err == nil {
		return acct, cred, nil
	}

	var oe *domain.OAuthError
	if !errors.As(err, &oe) {
		return nil, cred, err
	}
	next, rerr := s.oauth.Refresh(ctx, cred)
	if rerr != nil {
		return nil, cred, rerr
	}
	cred = next

	acct, err = s.resolveOnce(ctx, cred, opt)
	if err != nil {
		return nil, cred, err
	}
	return acct, cred, nil
}

// Identity resuelve sólo la identidad del usuario, sin guilds ni games.
// Sin retry: los endpoints mutantes no refrescan, devuelven el error tal cual.
func (s *AccountService) Identity(ctx context.Context, cred domain.Credential) (domain.Identity, error) {
	return s.oauth.Identity(ctx, cred)
}

func (s *AccountService) resolveOnce(ctx context.Context, cred domain.Credential, opt AccountOptions) (*Account, error) {
	ident, err := s.oauth.Identity(ctx, cred)
	if err != nil {
		return nil, err
	}

	settings, err := s.users.Get(ctx, ident.ID)
	if err != nil {
		return nil, fmt.Errorf("user settings: %w", err)
	}

	acct := &Account{
		User:   UserView{Identity: ident, Settings: settings},
		Guilds: []*GuildView{},
	}
	if !opt.Guilds {
		return acct, nil
	}

	guilds, err := s.dir.ListGuildsForMember(ctx, ident.ID)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}

	// candidatos: members siempre; buscando, matchea por nombre aunque no
	// sea member
	type candidate struct {
		guild  domain.Guild
		member *domain.Member
	}
	var candidates []candidate
	for _, g := range guilds {
		g := g
		member := g.MemberByID(ident.ID)
		if opt.Search != "" {
			if strings.Contains(strings.ToLower(g.Name), strings.ToLower(opt.Search)) {
				candidates = append(candidates, candidate{guild: g, member: member})
			}
			continue
		}
		if member != nil {
			candidates = append(candidates, candidate{guild: g, member: member})
		}
	}

	// una sola consulta para todas las configs
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.guild.ID)
	}
	configs, err := s.configs.FetchAllByGuilds(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("guild configs: %w", err)
	}

	for _, c := range candidates {
		cfg, ok := configs[c.guild.ID]
		if !ok {
			cfg = storage.NewGuildConfig(c.guild.ID)
		}

		// oculto: afuera, salvo que estemos buscando o sea el dueño del sitio
		if cfg.Hidden && opt.Search == "" && ident.Tag != s.ownerTag {
			continue
		}

		access, err := resolveGuildAccess(ctx, s.dir, &c.guild, cfg, c.member, ident.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve guild %s: %w", c.guild.ID, err)
		}

		view := &GuildView{
			ID:                   c.guild.ID,
			Name:                 c.guild.Name,
			Icon:                 s.guildIcon(c.guild),
			Permission:           access.Permission,
			IsAdmin:              access.IsAdmin,
			Member:               c.member,
			Roles:                c.guild.Roles,
			ChannelCategories:    c.guild.CategoryChannels(),
			Channels:             c.guild.TextChannels(),
			AnnouncementChannels: access.AnnouncementChannels,
			Config:               cfg,
			Games:                []*GameView{},
		}
		if c.member != nil {
			for _, r := range c.guild.Roles {
				for _, rid := range c.member.RoleIDs {
					if r.ID == rid {
						view.UserRoles = append(view.UserRoles, r.Name)
					}
				}
			}
		}
		acct.Guilds = append(acct.Guilds, view)
	}

	if opt.Games {
		if err := s.attachGames(ctx, acct, ident, opt.Page); err != nil {
			return nil, err
		}
	}

	for _, g := range acct.Guilds {
		games := g.Games
		sort.SliceStable(games, func(i, j int) bool { return games[i].Timestamp < games[j].Timestamp })
	}

	// en upcoming/my-games los guilds sin games van al final; los que tienen,
	// ordenados por el game más próximo, el resto por nombre
	if opt.Page == PageUpcoming || opt.Page == PageMyGames {
		sort.SliceStable(acct.Guilds, func(i, j int) bool {
			a, b := acct.Guilds[i], acct.Guilds[j]
			if len(a.Games) == 0 && len(b.Games) == 0 {
				return a.Name < b.Name
			}
			if len(a.Games) == 0 {
				return false
			}
			if len(b.Games) == 0 {
				return true
			}
			return a.Games[0].Timestamp < b.Games[0].Timestamp
		})
	}

	return acct, nil
}

func (s *AccountService) attachGames(ctx context.Context, acct *Account, ident domain.Identity, page string) error {
	ids := make([]string, 0, len(acct.Guilds))
	byID := map[string]*GuildView{}
	for _, g := range acct.Guilds {
		ids = append(ids, g.ID)
		byID[g.ID] = g
	}

	games, err := s.games.FetchByQuery(ctx, buildGameQuery(ids, page, ident))
	if err != nil {
		return fmt.Errorf("fetch games: %w", err)
	}

	now := time.Now()
	for _, game := range games {
		guild, ok := byID[game.GuildID]
		if !ok {
			continue
		}
		view := projectGame(game, guild, ident, now)
		guild.Games = append(guild.Games, view)
	}
	return nil
}

func (s *AccountService) guildIcon(g domain.Guild) string {
	if g.Icon == "" {
		return "/images/logo2.png"
	}
	return fmt.Sprintf("%s/icons/%s/%s.png?size=128", s.cdnBase, g.ID, g.Icon)
}
