package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

// vida de una sesión; cada refresh la renueva desde cero
const sessionTTL = 14 * 24 * time.Hour

// AuthService maneja el ciclo de vida de la sesión: login por code,
// resolución de bearer token y logout.
type AuthService struct {
	oauth    OAuthAPI
	sessions SessionStore
}

func NewAuthService(oauth OAuthAPI, sessions SessionStore) *AuthService {
	return &AuthService{oauth: oauth, sessions: sessions}
}

// Login canjea el authorization code y persiste la sesión bajo el access
// token nuevo. El upsert pisa cualquier resto de una sesión previa con la
// misma key.
func (s *AuthService) Login(ctx context.Context, code string) (domain.Credential, error) {
	cred, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return domain.Credential{}, err
	}
	sess := storage.Session{
		Token:      cred.AccessToken,
		ExpiresAt:  time.Now().Add(sessionTTL),
		Credential: cred,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return domain.Credential{}, fmt.Errorf("save session: %w", err)
	}
	return cred, nil
}

// CredentialForToken resuelve un bearer token a su credencial. Un token sin
// sesión, o con la sesión vencida, devuelve ErrInvalidSession.
func (s *AuthService) CredentialForToken(ctx context.Context, token string) (domain.Credential, error) {
	if token == "" {
		return domain.Credential{}, domain.ErrInvalidSession
	}
	sess, err := s.sessions.FetchByToken(ctx, token)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("fetch session: %w", err)
	}
	if sess == nil {
		return domain.Credential{}, domain.ErrInvalidSession
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return domain.Credential{}, domain.ErrInvalidSession
	}
	return sess.Credential, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}
