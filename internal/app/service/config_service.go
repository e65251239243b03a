package service

import (
	"context"
	"fmt"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

// ConfigService: mutaciones de configuración (guild, usuario, sitio).
// Las de guild exigen admin; las del sitio, ser el dueño configurado.
type ConfigService struct {
	dir      Directory
	configs  GuildConfigStore
	users    UserStore
	site     SiteStore
	notes    Notifier
	siteName string
	ownerTag string
}

func NewConfigService(dir Directory, configs GuildConfigStore, users UserStore, site SiteStore, notes Notifier, siteName, ownerTag string) *ConfigService {
	return &ConfigService{
		dir:      dir,
		configs:  configs,
		users:    users,
		site:     site,
		notes:    notes,
		siteName: siteName,
		ownerTag: ownerTag,
	}
}

// SaveGuildConfig aplica un patch campo a campo sobre la config persistida.
// Sólo los campos presentes en el patch cambian; nunca se pisa el documento
// entero con el payload del front.
func (s *ConfigService) SaveGuildConfig(ctx context.Context, ident domain.Identity, guildID string, patch storage.GuildConfigPatch) (storage.GuildConfig, error) {
	guild, err := s.dir.GuildForMember(ctx, guildID, ident.ID)
	if err != nil {
		return storage.GuildConfig{}, err
	}
	cfg, err := s.configs.Get(ctx, guildID)
	if err != nil {
		return storage.GuildConfig{}, fmt.Errorf("guild config: %w", err)
	}

	member := guild.MemberByID(ident.ID)
	isAdmin := member.HasPermission(permManageGuild) ||
		(cfg.ManagerRole != "" && member.HasRoleNamed(guild, cfg.ManagerRole))
	if !isAdmin {
		return storage.GuildConfig{}, domain.ErrPermissionDenied
	}

	if patch.Hidden != nil {
		cfg.Hidden = *patch.Hidden
	}
	if patch.ManagerRole != nil {
		cfg.ManagerRole = *patch.ManagerRole
	}
	if patch.Password != nil {
		cfg.Password = *patch.Password
	}
	if patch.Lang != nil {
		cfg.Lang = *patch.Lang
	}
	if patch.NotifyDropout != nil {
		cfg.NotifyDropout = *patch.NotifyDropout
	}
	if patch.Channels != nil {
		cfg.Channels = *patch.Channels
	}
	if patch.GameTemplates != nil {
		cfg.GameTemplates = *patch.GameTemplates
	}

	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return storage.GuildConfig{}, err
	}
	s.notes.Emit("guild-config", map[string]any{"guild": guildID})
	return cfg, nil
}

func (s *ConfigService) UserSettings(ctx context.Context, ident domain.Identity) (storage.UserSettings, error) {
	return s.users.Get(ctx, ident.ID)
}

func (s *ConfigService) SaveUserSettings(ctx context.Context, ident domain.Identity, patch storage.UserSettingsPatch) (storage.UserSettings, error) {
	settings, err := s.users.Get(ctx, ident.ID)
	if err != nil {
		return storage.UserSettings{}, fmt.Errorf("user settings: %w", err)
	}
	if patch.Lang != nil {
		settings.Lang = *patch.Lang
	}
	if patch.Pronouns != nil {
		settings.Pronouns = *patch.Pronouns
	}
	if err := s.users.Upsert(ctx, settings); err != nil {
		return storage.UserSettings{}, err
	}
	return settings, nil
}

func (s *ConfigService) SiteSettings(ctx context.Context) (storage.SiteSettings, error) {
	return s.site.Get(ctx, s.siteName)
}

func (s *ConfigService) SaveSiteSettings(ctx context.Context, ident domain.Identity, patch storage.SiteSettingsPatch) (storage.SiteSettings, error) {
	if ident.Tag != s.ownerTag {
		return storage.SiteSettings{}, domain.ErrPermissionDenied
	}
	settings, err := s.site.Get(ctx, s.siteName)
	if err != nil {
		return storage.SiteSettings{}, fmt.Errorf("site settings: %w", err)
	}
	if patch.Maintenance != nil {
		settings.Maintenance = *patch.Maintenance
	}
	if patch.Notice != nil {
		settings.Notice = *patch.Notice
	}
	if err := s.site.Upsert(ctx, settings); err != nil {
		return storage.SiteSettings{}, err
	}
	s.notes.Emit("site", map[string]any{"maintenance": settings.Maintenance, "notice": settings.Notice})
	return settings, nil
}
