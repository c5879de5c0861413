package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMobileNumber(t *testing.T) {
	valid := map[string]string{
		"0712345678":     "255712345678",
		"255712345678":   "255712345678",
		"  0655000111  ": "255655000111",
	}
	for input, want := range valid {
		got, err := NormalizeMobileNumber(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	for _, input := range []string{"", "712345678", "+255712345678", "07123456789", "07123abc78", "256712345678"} {
		_, err := NormalizeMobileNumber(input)
		assert.Error(t, err, input)
	}
}

func TestCustomerPhone(t *testing.T) {
	assert.Equal(t, "255712345678", CustomerPhone("whatsapp:+255712345678"))
	assert.Equal(t, "255712345678", CustomerPhone("255712345678@s.whatsapp.net"))
	assert.Equal(t, "console", CustomerPhone("console"))
}

func TestIsGroupOrBroadcast(t *testing.T) {
	assert.True(t, IsGroupOrBroadcast("120363@g.us"))
	assert.True(t, IsGroupOrBroadcast("status@broadcast"))
	assert.False(t, IsGroupOrBroadcast("whatsapp:+255712345678"))
}
