package storage

import (
	"strings"
	"time"

	"github.com/jose-valero/gamenight-bot/internal/domain"
)

// Session vive bajo el token de acceso como clave primaria. Un refresh nunca
// reutiliza la clave vieja: borra la fila y crea otra bajo el token nuevo.
type Session struct {
	Token      string
	ExpiresAt  time.Time
	Credential domain.Credential
}

// ChannelConfig asocia un canal de anuncios con los templates de game que se
// pueden postear en él.
type ChannelConfig struct {
	ChannelID     string   `json:"channel_id"`
	GameTemplates []string `json:"game_templates"`
}

type GameTemplate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	Role      string `json:"role"` // rol requerido para postear; vacío = cualquiera
}

type GuildConfig struct {
	GuildID       string          `json:"guild"`
	Hidden        bool            `json:"hidden"`
	ManagerRole   string          `json:"managerRole"`
	Password      string          `json:"password"`
	Lang          string          `json:"lang"`
	NotifyDropout bool            `json:"notifyDropout"`
	Channels      []ChannelConfig `json:"channels"`
	GameTemplates []GameTemplate  `json:"gameTemplates"`
	CreatedAt     time.Time       `json:"-"`
	UpdatedAt     time.Time       `json:"-"`
}

// NewGuildConfig: config vacía para guilds que todavía no guardaron nada.
func NewGuildConfig(guildID string) GuildConfig {
	return GuildConfig{GuildID: guildID, Lang: "en"}
}

// Patch parcial con campos enumerados; nada de iterar claves arbitrarias.
type GuildConfigPatch struct {
	Hidden        *bool
	ManagerRole   *string
	Password      *string
	Lang          *string
	NotifyDropout *bool
	Channels      *[]ChannelConfig
	GameTemplates *[]GameTemplate
}

func (c *GuildConfig) DefaultGameTemplate() GameTemplate {
	for _, gt := range c.GameTemplates {
		if gt.IsDefault {
			return gt
		}
	}
	if len(c.GameTemplates) > 0 {
		return c.GameTemplates[0]
	}
	return GameTemplate{ID: "default", Name: "Game", IsDefault: true}
}

func (c *GuildConfig) TemplateByID(id string) *GameTemplate {
	for i := range c.GameTemplates {
		if c.GameTemplates[i].ID == id {
			return &c.GameTemplates[i]
		}
	}
	return nil
}

func (c *GuildConfig) ChannelEntry(channelID string) *ChannelConfig {
	for i := range c.Channels {
		if c.Channels[i].ChannelID == channelID {
			return &c.Channels[i]
		}
	}
	return nil
}

// templateForChannel: primer template configurado para el canal, o el default.
func (c *GuildConfig) templateForChannel(channelID string) GameTemplate {
	if e := c.ChannelEntry(channelID); e != nil && len(e.GameTemplates) > 0 {
		if gt := c.TemplateByID(e.GameTemplates[0]); gt != nil {
			return *gt
		}
	}
	return c.DefaultGameTemplate()
}

// MemberMayPost es el predicado de permisos del guild: el template del canal
// puede exigir un rol por nombre. Con channelID vacío evalúa acceso general
// (alcanza con que algún canal configurado, o el default, lo deje pasar).
func (c *GuildConfig) MemberMayPost(g *domain.Guild, m *domain.Member, channelID string) bool {
	if m == nil {
		return false
	}
	if channelID != "" {
		return templateAllows(c.templateForChannel(channelID), g, m)
	}
	if len(c.Channels) == 0 {
		return templateAllows(c.DefaultGameTemplate(), g, m)
	}
	for _, e := range c.Channels {
		if templateAllows(c.templateForChannel(e.ChannelID), g, m) {
			return true
		}
	}
	return false
}

func templateAllows(gt GameTemplate, g *domain.Guild, m *domain.Member) bool {
	if strings.TrimSpace(gt.Role) == "" {
		return true
	}
	return m.HasRoleNamed(g, gt.Role)
}

type Game struct {
	ID             string        `json:"_id"`
	GuildID        string        `json:"s"`
	ChannelID      string        `json:"c"`
	Adventure      string        `json:"adventure"`
	Description    string        `json:"description"`
	DMID           string        `json:"dmId"`
	DMTag          string        `json:"dmTag"`
	DMRaw          string        `json:"dm"` // entrada freeform histórica
	Template       string        `json:"template"`
	Players        int           `json:"players"`
	MinPlayers     int           `json:"minPlayers"`
	Reserved       []domain.RSVP `json:"reserved"`
	ReservedRaw    string        `json:"reservedRaw"` // texto freeform histórico
	Where          string        `json:"where"`
	Timestamp      int64         `json:"timestamp"` // ms
	TimezoneOffset int           `json:"timezone"`  // horas respecto de UTC
	Date           string        `json:"date"`
	Time           string        `json:"time"`
	HideDate       bool          `json:"hideDate"`
	Method         string        `json:"method"`
	Frequency      int           `json:"frequency"`
	Weekdays       []bool        `json:"weekdays"`
	XWeeks         int           `json:"xWeeks"`
	ClearReserved  bool          `json:"clearReservedOnRepeat"`
	CreatedAt      time.Time     `json:"-"`
	UpdatedAt      time.Time     `json:"-"`
}

// GameQuery arma el alcance de una consulta de games. Mine* activa la
// alternación dm-o-reservado (incluye el fallback de substring sobre el texto
// freeform de reservas, por compatibilidad con entradas viejas).
type GameQuery struct {
	GuildIDs []string
	After    *int64 // timestamp_ms > After
	Before   *int64 // timestamp_ms < Before
	MineID   string
	MineTag  string
}

type UserSettings struct {
	UserID    string    `json:"-"`
	Lang      string    `json:"lang"`
	Pronouns  string    `json:"pronouns"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type UserSettingsPatch struct {
	Lang     *string
	Pronouns *string
}

type SiteSettings struct {
	Site        string    `json:"-"`
	Maintenance bool      `json:"maintenance"`
	Notice      string    `json:"notice"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

type SiteSettingsPatch struct {
	Maintenance *bool
	Notice      *string
}
