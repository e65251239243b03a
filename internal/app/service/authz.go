package service

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

const (
	permManageGuild = int64(discordgo.PermissionManageServer)
	permViewChannel = int64(discordgo.PermissionViewChannel)
)

// GuildAccess es el resultado de la resolución de permisos por guild. Se
// reconstruye en cada request, nunca se cachea.
type GuildAccess struct {
	IsAdmin    bool
	Permission bool
	// entradas de canal efectivas (las configuradas, o el fallback)
	ChannelEntries []storage.ChannelConfig
	// canales donde el member puede ver Y postear anuncios
	AnnouncementChannels []domain.Channel
}

// resolveGuildAccess calcula flags y canales para un member (nil si el
// usuario no pertenece al guild: el resultado es todo false/vacío, no error).
func resolveGuildAccess(ctx context.Context, dir Directory, g *domain.Guild, cfg storage.GuildConfig, member *domain.Member, viewerID string) (GuildAccess, error) {
	var access GuildAccess

	// 1) canales configurados; si no hay, o ninguno existe ya en el guild,
	// caemos a un canal por defecto.
	entries := append([]storage.ChannelConfig(nil), cfg.Channels...)
	anyExists := false
	for _, e := range entries {
		for _, ch := range g.Channels {
			if ch.ID == e.ChannelID {
				anyExists = true
			}
		}
	}
	if len(entries) == 0 || !anyExists {
		fallback, err := fallbackChannel(ctx, dir, g)
		if err != nil {
			return GuildAccess{}, err
		}
		if fallback != nil {
			entries = append(entries, storage.ChannelConfig{
				ChannelID:     fallback.ID,
				GameTemplates: []string{cfg.DefaultGameTemplate().ID},
			})
		}
	}
	access.ChannelEntries = entries

	// 2) admin: bit de manage-guild, o el rol manager configurado (por nombre)
	access.IsAdmin = member.HasPermission(permManageGuild) ||
		(cfg.ManagerRole != "" && member.HasRoleNamed(g, cfg.ManagerRole))

	// 3) acceso general al dashboard
	access.Permission = access.IsAdmin || cfg.MemberMayPost(g, member, "")

	// 4) canales de anuncios: visibles para el member y habilitados para
	// postear (admin bypassa el predicado de posteo)
	if member != nil {
		for _, e := range entries {
			// puede haber más de un canal con el mismo id: filtrar, no asumir unicidad
			for _, ch := range g.Channels {
				if ch.ID != e.ChannelID {
					continue
				}
				visible, err := dir.ChannelAllows(ctx, g.ID, ch.ID, viewerID, permViewChannel)
				if err != nil {
					return GuildAccess{}, err
				}
				if !visible {
					continue
				}
				if access.IsAdmin || cfg.MemberMayPost(g, member, ch.ID) {
					access.AnnouncementChannels = append(access.AnnouncementChannels, ch)
				}
			}
		}
	}

	return access, nil
}

// fallbackChannel recorre los canales de texto en orden y se queda con el
// ÚLTIMO visible para @everyone. El "último gana" es intencional (así se
// comporta el sitio desde siempre); no lo conviertas en early-return.
func fallbackChannel(ctx context.Context, dir Directory, g *domain.Guild) (*domain.Channel, error) {
	everyone := g.RoleByName("@everyone")
	if everyone == nil {
		return nil, nil
	}
	var last *domain.Channel
	for _, ch := range g.TextChannels() {
		ch := ch
		ok, err := dir.ChannelAllows(ctx, g.ID, ch.ID, everyone.ID, permViewChannel)
		if err != nil {
			return nil, err
		}
		if ok {
			last = &ch
		}
	}
	return last, nil
}
