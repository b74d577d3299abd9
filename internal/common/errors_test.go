package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoginErrors_UniformMessage(t *testing.T) {
	loginErrs := []error{ErrInvalidCredentials, ErrAccountLocked, ErrAccountInactive}

	for _, err := range loginErrs {
		assert.Equal(t, "authentication failed", err.Error())
	}

	assert.False(t, errors.Is(ErrAccountLocked, ErrInvalidCredentials))
	assert.False(t, errors.Is(ErrAccountInactive, ErrInvalidCredentials))
	assert.False(t, errors.Is(ErrAccountLocked, ErrAccountInactive))
}

func TestStoreUnavailable_Wrapping(t *testing.T) {
	err := fmt.Errorf("%w: %v", ErrStoreUnavailable, errors.New("conn refused"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "conn refused")
}
