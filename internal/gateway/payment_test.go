package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPaymentRef(t *testing.T) {
	valid := []string{"pi_abc", "pi_3OqXyZ9aBcDeFgHi", "pi_ABC_123"}
	for _, ref := range valid {
		assert.True(t, IsValidPaymentRef(ref), ref)
	}

	invalid := []string{"", "pi_", "tok_abc", "PI_abc", "pi_abc/def", "pi_abc def", "legacy-token"}
	for _, ref := range invalid {
		assert.False(t, IsValidPaymentRef(ref), ref)
	}
}
