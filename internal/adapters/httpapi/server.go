package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jose-valero/gamenight-bot/internal/adapters/oauth"
	"github.com/jose-valero/gamenight-bot/internal/app/service"
	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

type Server struct {
	auth     *service.AuthService
	accounts *service.AccountService
	games    *service.GameService
	config   *service.ConfigService
	hub      http.Handler
	mux      *http.ServeMux
}

func New(auth *service.AuthService, accounts *service.AccountService, games *service.GameService, config *service.ConfigService, hub http.Handler) *Server {
	s := &Server{auth: auth, accounts: accounts, games: games, config: config, hub: hub, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.HandleFunc("/api/logout", s.handleLogout)
	s.mux.HandleFunc("/api/account", s.handleAccount)
	s.mux.HandleFunc("/api/user", s.handleUser)
	s.mux.HandleFunc("/api/guild-config", s.handleGuildConfig)
	s.mux.HandleFunc("/api/game", s.handleGame)
	s.mux.HandleFunc("/api/rsvp", s.handleRSVP)
	s.mux.HandleFunc("/api/site", s.handleSite)
	if s.hub != nil {
		s.mux.Handle("/ws", s.hub)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// bearerToken saca el token del header Authorization (o de ?token=, que el
// front viejo todavía manda en algunos lugares).
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// credential resuelve el bearer token a una credencial viva; si no hay
// sesión el handler corta con código de re-login.
func (s *Server) credential(w http.ResponseWriter, r *http.Request) (domain.Credential, bool) {
	cred, err := s.auth.CredentialForToken(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return domain.Credential{}, false
	}
	return cred, true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cred, err := s.auth.Login(r.Context(), body.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	acct, cred, err := s.accounts.ResolveAccount(r.Context(), cred, service.AccountOptions{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"token": cred.AccessToken, "account": acct})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opt := service.AccountOptions{
		Guilds: q.Get("guilds") == "true",
		Games:  q.Get("games") == "true",
		Page:   q.Get("page"),
		Search: q.Get("search"),
	}
	acct, next, err := s.accounts.ResolveAccount(r.Context(), cred, opt)
	if err != nil {
		writeError(w, err)
		return
	}
	// el token puede haber rotado por un refresh: el front se queda con este
	writeJSON(w, map[string]any{"token": next.AccessToken, "account": acct})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	ident, err := s.accounts.Identity(r.Context(), cred)
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.config.UserSettings(r.Context(), ident)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, settings)
	case http.MethodPost:
		var body struct {
			Lang     *string `json:"lang"`
			Pronouns *string `json:"pronouns"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		settings, err := s.config.SaveUserSettings(r.Context(), ident, storage.UserSettingsPatch{
			Lang:     body.Lang,
			Pronouns: body.Pronouns,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, settings)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGuildConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	ident, err := s.accounts.Identity(r.Context(), cred)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Guild         string                   `json:"guild"`
		Hidden        *bool                    `json:"hidden"`
		ManagerRole   *string                  `json:"managerRole"`
		Password      *string                  `json:"password"`
		Lang          *string                  `json:"lang"`
		NotifyDropout *bool                    `json:"notifyDropout"`
		Channels      *[]storage.ChannelConfig `json:"channels"`
		GameTemplates *[]storage.GameTemplate  `json:"gameTemplates"`
	}
	// campos desconocidos en el patch son un error, no se ignoran
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil || body.Guild == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cfg, err := s.config.SaveGuildConfig(r.Context(), ident, body.Guild, storage.GuildConfigPatch{
		Hidden:        body.Hidden,
		ManagerRole:   body.ManagerRole,
		Password:      body.Password,
		Lang:          body.Lang,
		NotifyDropout: body.NotifyDropout,
		Channels:      body.Channels,
		GameTemplates: body.GameTemplates,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, cfg)
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	ident, err := s.accounts.Identity(r.Context(), cred)
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		view, err := s.games.Game(r.Context(), id, ident)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, view)
	case http.MethodPost:
		var game storage.Game
		if err := json.NewDecoder(r.Body).Decode(&game); err != nil || game.GuildID == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		view, err := s.games.SaveGame(r.Context(), ident, game)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, view)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := s.games.DeleteGame(r.Context(), ident, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRSVP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cred, ok := s.credential(w, r)
	if !ok {
		return
	}
	ident, err := s.accounts.Identity(r.Context(), cred)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Game string `json:"game"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Game == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	view, err := s.games.ToggleSignup(r.Context(), body.Game, ident)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// lectura pública: el front muestra el aviso de mantenimiento sin login
		settings, err := s.config.SiteSettings(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, settings)
	case http.MethodPost:
		cred, ok := s.credential(w, r)
		if !ok {
			return
		}
		ident, err := s.accounts.Identity(r.Context(), cred)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			Maintenance *bool   `json:"maintenance"`
			Notice      *string `json:"notice"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		settings, err := s.config.SaveSiteSettings(r.Context(), ident, storage.SiteSettingsPatch{
			Maintenance: body.Maintenance,
			Notice:      body.Notice,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, settings)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code           int    `json:"code"`
	Message        string `json:"message"`
	Reauthenticate bool   `json:"reauthenticate,omitempty"`
}

// writeError mapea la taxonomía de errores del core a códigos estables; el
// front decide qué mostrar según el code.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Code: domain.CodeStorage, Message: "internal error"}

	var oe *domain.OAuthError
	var pe *oauth.ProviderError
	switch {
	case errors.Is(err, domain.ErrInvalidSession):
		status = http.StatusUnauthorized
		body = errorBody{Code: domain.CodeInvalidSession, Message: "session expired, log in again", Reauthenticate: true}
	case errors.As(err, &oe):
		status = http.StatusUnauthorized
		body = errorBody{Code: domain.CodeOAuth, Message: oe.Message, Reauthenticate: oe.Reauthenticate()}
	// un refresh fallido también manda de vuelta al login: credencial
	// incompleta o rechazo del provider
	case errors.Is(err, oauth.ErrInvalidCredential):
		status = http.StatusUnauthorized
		body = errorBody{Code: domain.CodeUserAuth, Message: "session credential incomplete, log in again", Reauthenticate: true}
	case errors.As(err, &pe):
		status = http.StatusUnauthorized
		body = errorBody{Code: domain.CodeProvider, Message: pe.Description, Reauthenticate: true}
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
		body = errorBody{Code: domain.CodePermissionDenied, Message: "permission denied"}
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
		body = errorBody{Code: domain.CodeNotFound, Message: "not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{"error": body})
}

func (s *Server) Start(addr string) {
	log.Printf("🌐 HTTP listening on %s", addr)
	if err := http.ListenAndServe(addr, s.mux); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
