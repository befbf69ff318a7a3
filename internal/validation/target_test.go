package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"already clean", "example.com", "example.com"},
		{"scheme www case and slash", "https://www.Example.com/", "example.com"},
		{"http scheme", "http://example.com", "example.com"},
		{"path dropped", "https://example.com/some/path", "example.com"},
		{"query dropped", "example.com?utm=1", "example.com"},
		{"subdomain kept", "https://api.example.com", "api.example.com"},
		{"surrounding whitespace", "  example.com  ", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, NormalizeTarget(tt.input))
		})
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"valid domain", "example.com", ""},
		{"valid with scheme", "https://www.example.com/", ""},
		{"valid subdomain", "api.staging.example.com", ""},
		{"empty", "", "empty"},
		{"whitespace only", "   ", "empty"},
		{"over length", strings.Repeat("a", 256), "255"},
		{"no dot", "localhost", "not a domain"},
		{"garbage", "not a domain!!", "not a domain"},
		{"bare tld", "com", "not a domain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.wantErr)
		})
	}
}

func TestValidateTargetLengthBoundary(t *testing.T) {
	label := strings.Repeat("a", 61)
	long := label + "." + label + "." + label + "." + label + ".com" // 251 chars
	require.LessOrEqual(t, len(long), MaxTargetLength)
	assert.NoError(t, ValidateTarget(long))

	over := strings.Repeat("a", MaxTargetLength+1)
	err := ValidateTarget(over)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "255")
}
