package models

import (
	"fmt"
	"unicode/utf8"

	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
)

// Limits holds the configured bounds every write is checked against. Lengths count
// runes, not bytes.
type Limits struct {
	MaxTitleLength    int
	MaxAbstractLength int
	MaxTagLength      int
	MaxTags           int
	MaxSizeBytes      uint64
	MaxStatusLength   int
	MaxLevelLength    int
	MaxReasonLength   int
}

// DefaultLimits returns the registry's standard bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxTitleLength:    64,
		MaxAbstractLength: 128,
		MaxTagLength:      32,
		MaxTags:           10,
		MaxSizeBytes:      1_000_000_000,
		MaxStatusLength:   16,
		MaxLevelLength:    16,
		MaxReasonLength:   64,
	}
}

func lengthIn(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// ValidateTitle reports whether s is a usable designation.
func (l Limits) ValidateTitle(s string) bool {
	return lengthIn(s, 1, l.MaxTitleLength)
}

// ValidateAbstract reports whether s is a usable summary.
func (l Limits) ValidateAbstract(s string) bool {
	return lengthIn(s, 1, l.MaxAbstractLength)
}

// ValidateTag reports whether s is a usable tag.
func (l Limits) ValidateTag(s string) bool {
	return lengthIn(s, 1, l.MaxTagLength)
}

// ValidateTagSet requires between one and MaxTags tags, each passing ValidateTag.
func (l Limits) ValidateTagSet(tags []string) bool {
	if len(tags) < 1 || len(tags) > l.MaxTags {
		return false
	}
	for _, tag := range tags {
		if !l.ValidateTag(tag) {
			return false
		}
	}
	return true
}

// ValidateSize requires 0 < n <= MaxSizeBytes.
func (l Limits) ValidateSize(n uint64) bool {
	return n > 0 && n <= l.MaxSizeBytes
}

// ValidateStatus allows one to MaxStatusLength runes.
func (l Limits) ValidateStatus(s string) bool {
	return lengthIn(s, 1, l.MaxStatusLength)
}

// ValidateLevel allows one to MaxLevelLength runes.
func (l Limits) ValidateLevel(s string) bool {
	return lengthIn(s, 1, l.MaxLevelLength)
}

// ValidateReason allows an empty reason.
func (l Limits) ValidateReason(s string) bool {
	return lengthIn(s, 0, l.MaxReasonLength)
}

// CheckTitle surfaces a failed ValidateTitle as CodeInvalidTitle.
func (l Limits) CheckTitle(s string) error {
	if !l.ValidateTitle(s) {
		return dErrors.New(dErrors.CodeInvalidTitle, fmt.Sprintf("designation must be between 1 and %d characters", l.MaxTitleLength))
	}
	return nil
}

// CheckAbstract surfaces a failed ValidateAbstract as CodeInvalidAbstract.
func (l Limits) CheckAbstract(s string) error {
	if !l.ValidateAbstract(s) {
		return dErrors.New(dErrors.CodeInvalidAbstract, fmt.Sprintf("summary must be between 1 and %d characters", l.MaxAbstractLength))
	}
	return nil
}

// CheckTagSet surfaces a failed ValidateTagSet as CodeInvalidTagSet.
func (l Limits) CheckTagSet(tags []string) error {
	if !l.ValidateTagSet(tags) {
		return dErrors.New(dErrors.CodeInvalidTagSet, fmt.Sprintf("tags must hold 1 to %d entries of 1 to %d characters", l.MaxTags, l.MaxTagLength))
	}
	return nil
}

// CheckTag surfaces a failed ValidateTag as CodeMetadataTagValidation. Used when a
// single tag is edited rather than a whole set being written.
func (l Limits) CheckTag(s string) error {
	if !l.ValidateTag(s) {
		return dErrors.New(dErrors.CodeMetadataTagValidation, fmt.Sprintf("tag must be between 1 and %d characters", l.MaxTagLength))
	}
	return nil
}

// CheckSize surfaces a failed ValidateSize as CodeFileSizeBoundaryViolation.
func (l Limits) CheckSize(n uint64) error {
	if !l.ValidateSize(n) {
		return dErrors.New(dErrors.CodeFileSizeBoundaryViolation, fmt.Sprintf("size must be between 1 and %d bytes", l.MaxSizeBytes))
	}
	return nil
}

// CheckStatus surfaces a failed ValidateStatus as CodeValidation.
func (l Limits) CheckStatus(s string) error {
	if !l.ValidateStatus(s) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("status must be between 1 and %d characters", l.MaxStatusLength))
	}
	return nil
}

// CheckLevel surfaces a failed ValidateLevel as CodeValidation.
func (l Limits) CheckLevel(s string) error {
	if !l.ValidateLevel(s) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("access level must be between 1 and %d characters", l.MaxLevelLength))
	}
	return nil
}

// CheckReason surfaces a failed ValidateReason as CodeValidation.
func (l Limits) CheckReason(s string) error {
	if !l.ValidateReason(s) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("reason must be at most %d characters", l.MaxReasonLength))
	}
	return nil
}

// CheckRegistration runs every rule a new record must pass, in a fixed order, and
// returns the first failure.
func (l Limits) CheckRegistration(req *RegisterRequest) error {
	if req.ID > id.MaxAssetID {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("asset id may not exceed %d", id.MaxAssetID))
	}
	if err := l.CheckTitle(req.Designation); err != nil {
		return err
	}
	if err := l.CheckAbstract(req.Summary); err != nil {
		return err
	}
	if err := l.CheckTagSet(req.Tags); err != nil {
		return err
	}
	if err := l.CheckSize(req.SizeBytes); err != nil {
		return err
	}
	if req.Status != "" {
		return l.CheckStatus(req.Status)
	}
	return nil
}

// CheckMetadataUpdate re-runs the rule for every field present in req.
func (l Limits) CheckMetadataUpdate(req *UpdateMetadataRequest) error {
	if req.Designation != nil {
		if err := l.CheckTitle(*req.Designation); err != nil {
			return err
		}
	}
	if req.Summary != nil {
		if err := l.CheckAbstract(*req.Summary); err != nil {
			return err
		}
	}
	if req.Tags != nil {
		if err := l.CheckTagSet(*req.Tags); err != nil {
			return err
		}
	}
	if req.SizeBytes != nil {
		if err := l.CheckSize(*req.SizeBytes); err != nil {
			return err
		}
	}
	return nil
}
