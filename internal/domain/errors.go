package domain

import (
	"errors"
	"fmt"
)

// Códigos estables para la capa HTTP (el front decide qué mostrar).
const (
	CodeOAuth            = 2
	CodeInvalidSession   = 7
	CodeUserAuth         = 8
	CodeNotFound         = 16
	CodePermissionDenied = 25
	CodeProvider         = 28
	CodeStorage          = 30
)

var (
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidSession: el bearer token no corresponde a ninguna sesión
	// viva; el front tiene que rehacer el login.
	ErrInvalidSession = errors.New("invalid or expired session")
)

// OAuthError: la llamada de identidad fue rechazada por Discord. Es el único
// error que dispara el refresh-and-retry (una sola vez) en el aggregator.
type OAuthError struct {
	Status  int
	Message string
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("oauth: %d %s", e.Status, e.Message)
}

// Reauthenticate indica al caller que debe rehacer el flujo OAuth completo.
func (e *OAuthError) Reauthenticate() bool { return true }
