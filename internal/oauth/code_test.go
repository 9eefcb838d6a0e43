package oauth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCodeAccepts(t *testing.T) {
	for _, raw := range []string{"abc123", "A", "0123456789", strings.Repeat("z", MaxCodeLength)} {
		code, err := ValidateCode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, Code(raw), code)
	}
}

func TestValidateCodeRejects(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"space":        "has space",
		"ampersand":    "abc&client_id=evil",
		"equals":       "abc=1",
		"percent":      "abc%20",
		"newline":      "abc\n",
		"unicode":      "äbc",
		"dash":         "abc-123",
		"too long":     strings.Repeat("a", MaxCodeLength+1),
		"nul byte":     "abc\x00",
		"url fragment": "abc#x",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateCode(raw)
			require.Error(t, err)
			assert.Equal(t, KindInvalidCode, KindOf(err))
		})
	}
}
