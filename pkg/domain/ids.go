package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "citadel/pkg/domain-errors"
)

// AssetID identifies a registered asset. Identifiers run from 1 to MaxAssetID and are
// never reused; the zero value means "not assigned".
type AssetID uint64

// MaxAssetID is the largest assignable identifier. Ids are stored in signed 64-bit
// columns.
const MaxAssetID AssetID = math.MaxInt64

// Principal is an identity that can own assets, hold grants, or administer the registry.
//
// Invariants:
//   - non-empty, at most MaxPrincipalLength runes
//   - valid UTF-8 without whitespace or control characters
type Principal string

// Height is the logical clock supplied by the host environment. It never decreases.
type Height uint64

// MaxPrincipalLength bounds principal identifiers at trust boundaries.
const MaxPrincipalLength = 128

// ParseAssetID parses a decimal asset identifier from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, not a base-10
// unsigned integer, or outside 1..MaxAssetID.
func ParseAssetID(s string) (AssetID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "asset id cannot be empty")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid asset id format")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "asset id must be positive")
	}
	if n > uint64(MaxAssetID) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("asset id may not exceed %d", MaxAssetID))
	}
	return AssetID(n), nil
}

// String returns the decimal form of the identifier.
func (id AssetID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IsNil reports whether the identifier is unassigned.
func (id AssetID) IsNil() bool {
	return id == 0
}

// ParsePrincipal constructs a Principal from external input.
//
// Errors: returns CodeInvalidInput when the value violates any Principal invariant.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal cannot be empty")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal must be valid UTF-8")
	}
	if utf8.RuneCountInString(s) > MaxPrincipalLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is too long")
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
	}) >= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal contains invalid characters")
	}
	return Principal(s), nil
}

// String returns the string representation of the principal.
func (p Principal) String() string {
	return string(p)
}

// IsNil reports whether the principal is empty.
func (p Principal) IsNil() bool {
	return p == ""
}

// Since returns the number of heights elapsed from earlier to h. It saturates at zero
// so a stale height never produces a wrapped-around age.
func (h Height) Since(earlier Height) uint64 {
	if h < earlier {
		return 0
	}
	return uint64(h - earlier)
}
