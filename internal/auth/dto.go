package auth

import (
	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (d LoginDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

type LoginResponse struct {
	Status string `json:"status"`
	LoginResult
}
