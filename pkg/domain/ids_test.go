package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "citadel/pkg/domain-errors"
)

// TestParseAssetID_Invariants validates the parsing invariant:
// "asset ids are base-10 integers in 1..MaxAssetID"
func TestParseAssetID_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    AssetID
		wantErr bool
	}{
		{"empty string", "", 0, true},
		{"zero is reserved", "0", 0, true},
		{"negative", "-1", 0, true},
		{"hex is rejected", "0x10", 0, true},
		{"overflow", "18446744073709551616", 0, true},
		{"whitespace padded", " 7 ", 0, true},
		{"max uint64", "18446744073709551615", 0, true},
		{"one past max", "9223372036854775808", 0, true},
		{"one", "1", 1, false},
		{"max", "9223372036854775807", MaxAssetID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssetID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

// TestParsePrincipal_SecurityInvariants rejects values that could smuggle
// ambiguity into ownership comparisons.
func TestParsePrincipal_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
		{"Embedded space", "alice smith", true},
		{"Null byte injection", "alice\x00admin", true},
		{"Unicode zero-width space", "alice\u200Badmin", true},
		{"Invalid UTF-8", string([]byte{0xff, 0xfe}), true},
		{"Oversized input", strings.Repeat("a", MaxPrincipalLength+1), true},

		{"Max length", strings.Repeat("a", MaxPrincipalLength), false},
		{"Address-like", "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM", false},
		{"Contract-like", "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.registry", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePrincipal(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				assert.True(t, p.IsNil())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, p.String())
		})
	}
}

func TestHeightSince(t *testing.T) {
	assert.Equal(t, uint64(0), Height(10).Since(10))
	assert.Equal(t, uint64(5), Height(15).Since(10))
	assert.Equal(t, uint64(0), Height(3).Since(10), "stale heights saturate at zero")
}
