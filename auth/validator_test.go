package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/threads/domain"
)

func TestStaticValidator(t *testing.T) {
	v := NewStaticValidator(map[string]string{"key-a": "cred_a"})

	credentialID, err := v.Validate("key-a")
	assert.NoError(t, err)
	assert.Equal(t, "cred_a", credentialID)

	_, err = v.Validate("key-b")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = v.Validate("")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestStaticValidatorCopiesKeys(t *testing.T) {
	source := map[string]string{"key-a": "cred_a"}
	v := NewStaticValidator(source)

	// Mutating the source map after construction must not affect the
	// validator.
	source["key-b"] = "cred_b"
	_, err := v.Validate("key-b")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
