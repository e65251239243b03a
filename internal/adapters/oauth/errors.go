package oauth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredential: credencial incompleta (nunca pasó por el exchange).
var ErrInvalidCredential = errors.New("missing or invalid session token")

// ProviderError: respuesta no exitosa del endpoint de tokens de Discord.
type ProviderError struct {
	Status      int
	Description string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("discord oauth status %d: %s", e.Status, e.Description)
}
