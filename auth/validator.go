// Package auth defines the credential validation boundary. Key issuance
// and storage belong to an external service; the core only needs to
// resolve an api key to a credential id.
package auth

import "github.com/xiaot623/threads/domain"

// Validator resolves an api key to a credential id.
type Validator interface {
	Validate(key string) (string, error)
}

// StaticValidator validates keys against a fixed key -> credential map,
// typically loaded from configuration.
type StaticValidator struct {
	keys map[string]string
}

var _ Validator = (*StaticValidator)(nil)

// NewStaticValidator creates a validator over the given key map.
func NewStaticValidator(keys map[string]string) *StaticValidator {
	copied := make(map[string]string, len(keys))
	for k, v := range keys {
		copied[k] = v
	}
	return &StaticValidator{keys: copied}
}

// Validate returns the credential id for a key, or ErrUnauthorized.
func (v *StaticValidator) Validate(key string) (string, error) {
	if key == "" {
		return "", domain.ErrUnauthorized
	}
	credentialID, ok := v.keys[key]
	if !ok {
		return "", domain.ErrUnauthorized
	}
	return credentialID, nil
}
