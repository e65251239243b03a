package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/gamenight-bot/internal/domain"
)

// Directory expone los guilds del bot como snapshots de dominio. Es el único
// punto donde se habla discordgo; los services solo ven domain.Guild.
type Directory struct {
	s   *discordgo.Session
	log *slog.Logger
}

func NewDirectory(s *discordgo.Session, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{s: s, log: log}
}

// ListGuildsForMember: todos los guilds donde está el bot, con el member
// pedido resuelto (si pertenece). Una sola pasada por el state, sin fan-out.
func (d *Directory) ListGuildsForMember(ctx context.Context, memberID string) ([]domain.Guild, error) {
	out := make([]domain.Guild, 0, len(d.s.State.Guilds))
	for _, g := range d.s.State.Guilds {
		snap, err := d.snapshot(ctx, g.ID, memberID)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

// GuildForMember: snapshot de un guild puntual con el member resuelto.
func (d *Directory) GuildForMember(ctx context.Context, guildID, memberID string) (*domain.Guild, error) {
	return d.snapshot(ctx, guildID, memberID)
}

func (d *Directory) snapshot(ctx context.Context, guildID, memberID string) (*domain.Guild, error) {
	g, err := d.s.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s: %w", guildID, err)
	}

	snap := &domain.Guild{ID: g.ID, Name: g.Name, Icon: g.Icon}
	for _, r := range g.Roles {
		snap.Roles = append(snap.Roles, domain.Role{ID: r.ID, Name: r.Name, Permissions: r.Permissions})
	}
	for _, c := range g.Channels {
		snap.Channels = append(snap.Channels, domain.Channel{
			ID:       c.ID,
			Name:     c.Name,
			ParentID: c.ParentID,
			Type:     channelType(c.Type),
		})
	}

	if memberID != "" {
		m, err := d.member(ctx, g, memberID)
		if err != nil {
			return nil, err
		}
		if m != nil {
			snap.Members = append(snap.Members, *m)
		}
	}
	return snap, nil
}

func (d *Directory) member(ctx context.Context, g *discordgo.Guild, memberID string) (*domain.Member, error) {
	m, err := d.s.State.Member(g.ID, memberID)
	if err != nil {
		// no está en el state: un fetch puntual, 404 => no es miembro
		m, err = d.s.GuildMember(g.ID, memberID, discordgo.WithContext(ctx))
		if err != nil {
			if rerr, ok := err.(*discordgo.RESTError); ok && rerr.Response != nil && rerr.Response.StatusCode == 404 {
				return nil, nil
			}
			d.log.Warn("guild member fetch", "guild", g.ID, "member", memberID, "err", err)
			return nil, nil
		}
	}
	if m.User == nil {
		return nil, nil
	}
	return &domain.Member{
		ID:          m.User.ID,
		Tag:         m.User.Username + "#" + m.User.Discriminator,
		RoleIDs:     m.Roles,
		Permissions: guildPermissions(g, m),
	}, nil
}

// ChannelAllows evalúa un bit de permiso sobre un canal para un principal,
// que puede ser tanto un member como un rol (el resolver consulta el rol
// @everyone en el scan de canal por defecto).
func (d *Directory) ChannelAllows(ctx context.Context, guildID, channelID, principalID string, perm int64) (bool, error) {
	g, err := d.s.State.Guild(guildID)
	if err != nil {
		return false, fmt.Errorf("guild %s: %w", guildID, err)
	}
	var ch *discordgo.Channel
	for _, c := range g.Channels {
		if c.ID == channelID {
			ch = c
			break
		}
	}
	if ch == nil {
		return false, nil
	}

	if r := roleByID(g, principalID); r != nil {
		return rolePermissions(g, ch, r)&perm == perm, nil
	}

	m, err := d.member(ctx, g, principalID)
	if err != nil || m == nil {
		return false, err
	}
	return memberChannelPermissions(g, ch, m)&perm == perm, nil
}

// --- aritmética de permisos (orden overwrite: @everyone, roles, member) ---

func guildPermissions(g *discordgo.Guild, m *discordgo.Member) int64 {
	if m.User != nil && m.User.ID == g.OwnerID {
		return discordgo.PermissionAll
	}
	var perms int64
	for _, r := range g.Roles {
		if r.Name == "@everyone" {
			perms |= r.Permissions
		}
		for _, rid := range m.Roles {
			if r.ID == rid {
				perms |= r.Permissions
			}
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

func rolePermissions(g *discordgo.Guild, ch *discordgo.Channel, role *discordgo.Role) int64 {
	perms := role.Permissions
	if everyone := roleByName(g, "@everyone"); everyone != nil && everyone.ID != role.ID {
		perms |= everyone.Permissions
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeRole {
			continue
		}
		if ow.ID == role.ID || (roleByName(g, "@everyone") != nil && ow.ID == roleByName(g, "@everyone").ID) {
			perms &^= ow.Deny
			perms |= ow.Allow
		}
	}
	return perms
}

func memberChannelPermissions(g *discordgo.Guild, ch *discordgo.Channel, m *domain.Member) int64 {
	perms := m.Permissions
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}

	everyone := roleByName(g, "@everyone")
	if everyone != nil {
		for _, ow := range ch.PermissionOverwrites {
			if ow.Type == discordgo.PermissionOverwriteTypeRole && ow.ID == everyone.ID {
				perms &^= ow.Deny
				perms |= ow.Allow
			}
		}
	}

	var allow, deny int64
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeRole {
			continue
		}
		for _, rid := range m.RoleIDs {
			if ow.ID == rid {
				allow |= ow.Allow
				deny |= ow.Deny
			}
		}
	}
	perms &^= deny
	perms |= allow

	for _, ow := range ch.PermissionOverwrites {
		if ow.Type == discordgo.PermissionOverwriteTypeMember && ow.ID == m.ID {
			perms &^= ow.Deny
			perms |= ow.Allow
		}
	}
	return perms
}

func roleByID(g *discordgo.Guild, id string) *discordgo.Role {
	for _, r := range g.Roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func roleByName(g *discordgo.Guild, name string) *discordgo.Role {
	for _, r := range g.Roles {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func channelType(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	case discordgo.ChannelTypeGuildVoice:
		return "voice"
	default:
		return "other"
	}
}
