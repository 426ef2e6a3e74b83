// Package auth validates the bridge auth token carried in call frames.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/danmuck/zcnbind/internal/abi"
)

// ErrUnauthorized is an argument error so it survives the wire as CodeInvalid.
var ErrUnauthorized = fmt.Errorf("%w: unauthorized", abi.ErrInvalidArgument)

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// AllowAll accepts any token, including none.
var AllowAll Validator = FuncValidator(func(string) error { return nil })

// FromToken returns StaticToken for a configured token and AllowAll for "".
func FromToken(token string) Validator {
	if token == "" {
		return AllowAll
	}
	return StaticToken{Token: token}
}

var errNilValidator = errors.New("auth: nil validator")

// Check runs v, treating a nil validator as a configuration error.
func Check(v Validator, token string) error {
	if v == nil {
		return errNilValidator
	}
	return v.Validate(token)
}
