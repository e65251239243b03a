package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

const (
	defaultTokenURL = "https://discord.com/api/v10/oauth2/token"
	defaultAPIBase  = "https://discord.com/api"
	defaultCDN      = "https://cdn.discordapp.com"

	oauthScope = "identify guilds"

	// vida de la sesión persistida tras login/refresh
	sessionTTL = 14 * 24 * time.Hour
)

// SessionStore es lo que el gateway necesita para migrar la sesión cuando un
// refresh devuelve un access token distinto. Lo implementa storage.SessionRepo.
type SessionStore interface {
	FetchByToken(ctx context.Context, token string) (*storage.Session, error)
	Save(ctx context.Context, s storage.Session) error
	Delete(ctx context.Context, token string) error
}

type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	http         *http.Client
	tokenURL     string
	apiBase      string
	cdnBase      string
	sessions     SessionStore
	refreshing   singleflight.Group // serializa refresh por token
}

func New(clientID, clientSecret, redirectURI string, sessions SessionStore, opts ...Option) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		http:         &http.Client{Timeout: 10 * time.Second},
		tokenURL:     defaultTokenURL,
		apiBase:      defaultAPIBase,
		cdnBase:      defaultCDN,
		sessions:     sessions,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ExchangeCode cambia un authorization code por una credencial completa.
func (c *Client) ExchangeCode(ctx context.Context, code string) (domain.Credential, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)
	form.Set("scope", oauthScope)
	return c.doToken(ctx, form)
}

// Refresh cambia el refresh token por una credencial nueva y, si el access
// token cambió, migra la sesión: borra la fila vieja y crea una bajo el token
// nuevo con expiración +14 días. Refreshes concurrentes del mismo token
// colapsan en una sola llamada al provider.
func (c *Client) Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
	if cred.TokenType == "" {
		return domain.Credential{}, ErrInvalidCredential
	}

	v, err, _ := c.refreshing.Do(cred.AccessToken, func() (any, error) {
		return c.refreshOnce(ctx, cred)
	})
	if err != nil {
		return domain.Credential{}, err
	}
	return v.(domain.Credential), nil
}

func (c *Client) refreshOnce(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
	stored, err := c.sessions.FetchByToken(ctx, cred.AccessToken)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("fetch session: %w", err)
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("redirect_uri", c.redirectURI)
	form.Set("scope", oauthScope)

	next, err := c.doToken(ctx, form)
	if err != nil {
		return domain.Credential{}, err
	}

	if stored != nil && stored.Token != next.AccessToken {
		if err := c.sessions.Delete(ctx, stored.Token); err != nil {
			return domain.Credential{}, fmt.Errorf("delete session: %w", err)
		}
		if err := c.sessions.Save(ctx, storage.Session{
			Token:      next.AccessToken,
			ExpiresAt:  time.Now().Add(sessionTTL),
			Credential: next,
		}); err != nil {
			return domain.Credential{}, fmt.Errorf("save session: %w", err)
		}
	}
	return next, nil
}

func (c *Client) doToken(ctx context.Context, form url.Values) (domain.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("oauth http: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var body providerErrorDTO
		_ = json.NewDecoder(io.LimitReader(res.Body, 4<<10)).Decode(&body)
		desc := body.ErrorDescription
		if desc == "" {
			desc = body.Error
		}
		return domain.Credential{}, &ProviderError{Status: res.StatusCode, Description: desc}
	}

	var dto tokenDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return domain.Credential{}, fmt.Errorf("oauth decode: %w", err)
	}
	return domain.Credential{
		AccessToken:   dto.AccessToken,
		RefreshToken:  dto.RefreshToken,
		TokenType:     dto.TokenType,
		Scope:         dto.Scope,
		ExpiresIn:     dto.ExpiresIn,
		LastRefreshed: time.Now().Unix(),
	}, nil
}

// Identity resuelve /users/@me con la credencial del usuario. Cualquier
// fallo (transporte o no-200) es un OAuthError: es la señal que usa el
// aggregator para intentar el refresh.
func (c *Client) Identity(ctx context.Context, cred domain.Credential) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/users/@me", nil)
	if err != nil {
		return domain.Identity{}, err
	}
	req.Header.Set("Authorization", cred.TokenType+" "+cred.AccessToken)

	res, err := c.http.Do(req)
	if err != nil {
		return domain.Identity{}, &domain.OAuthError{Status: 0, Message: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return domain.Identity{}, &domain.OAuthError{Status: res.StatusCode, Message: strings.TrimSpace(string(b))}
	}

	var dto userDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return domain.Identity{}, &domain.OAuthError{Status: res.StatusCode, Message: err.Error()}
	}
	return domain.Identity{
		ID:            dto.ID,
		Username:      dto.Username,
		Discriminator: dto.Discriminator,
		Tag:           dto.Username + "#" + dto.Discriminator,
		AvatarURL:     fmt.Sprintf("%s/avatars/%s/%s.png?size=128", c.cdnBase, dto.ID, dto.Avatar),
	}, nil
}
