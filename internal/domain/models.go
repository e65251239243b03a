package domain

import "strings"

// Credential es el bundle OAuth tal cual lo devuelve Discord, más el instante
// del último refresh (unix seconds). Cada sesión es dueña de su copia.
type Credential struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	TokenType     string `json:"token_type"`
	Scope         string `json:"scope"`
	ExpiresIn     int    `json:"expires_in"`
	LastRefreshed int64  `json:"last_refreshed"`
}

// Identity: usuario resuelto contra /users/@me. No se cachea entre requests.
type Identity struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Tag           string `json:"tag"`
	AvatarURL     string `json:"avatarURL"`
}

// RSVP es una entrada de la lista de reservas de un game. El orden de la
// lista codifica el orden de anotado (y por lo tanto slot/waitlist).
type RSVP struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

// --- snapshots del directorio (guilds del bot) ---

type Role struct {
	ID          string
	Name        string
	Permissions int64
}

type Member struct {
	ID          string
	Tag         string
	RoleIDs     []string
	Permissions int64 // bits agregados de sus roles (owner/admin => todo)
}

type Channel struct {
	ID       string
	Name     string
	ParentID string
	Type     string // "text" | "category" | otros
}

type Guild struct {
	ID       string
	Name     string
	Icon     string
	Roles    []Role
	Channels []Channel
	Members  []Member
}

func (m *Member) HasPermission(bit int64) bool {
	if m == nil {
		return false
	}
	return m.Permissions&bit == bit
}

// HasRoleNamed compara nombres de rol ignorando mayúsculas y espacios.
func (m *Member) HasRoleNamed(g *Guild, name string) bool {
	if m == nil || g == nil {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for _, rid := range m.RoleIDs {
		for _, r := range g.Roles {
			if r.ID == rid && strings.ToLower(strings.TrimSpace(r.Name)) == want {
				return true
			}
		}
	}
	return false
}

func (g *Guild) MemberByID(id string) *Member {
	for i := range g.Members {
		if g.Members[i].ID == id {
			return &g.Members[i]
		}
	}
	return nil
}

func (g *Guild) RoleByName(name string) *Role {
	for i := range g.Roles {
		if g.Roles[i].Name == name {
			return &g.Roles[i]
		}
	}
	return nil
}

func (g *Guild) TextChannels() []Channel {
	var out []Channel
	for _, c := range g.Channels {
		if c.Type == "text" {
			out = append(out, c)
		}
	}
	return out
}

func (g *Guild) CategoryChannels() []Channel {
	var out []Channel
	for _, c := range g.Channels {
		if c.Type == "category" {
			out = append(out, c)
		}
	}
	return out
}
