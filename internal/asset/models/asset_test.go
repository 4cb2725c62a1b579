package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
)

func TestNewAsset(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := DefaultLimits()

	t.Run("stamps owner heights and default status", func(t *testing.T) {
		a, err := NewAsset(validRegisterRequest(), "alice", 120, now, l)
		require.NoError(t, err)
		assert.Equal(t, id.Principal("alice"), a.Owner)
		assert.Equal(t, id.Height(120), a.RegisteredAt)
		assert.Equal(t, id.Height(120), a.LastModifiedAt)
		assert.Equal(t, now, a.CreatedAt)
		assert.Equal(t, StatusActive, a.Status)
	})

	t.Run("copies tags rather than aliasing the request", func(t *testing.T) {
		req := validRegisterRequest()
		a, err := NewAsset(req, "alice", 1, now, l)
		require.NoError(t, err)
		req.Tags[0] = "mutated"
		assert.Equal(t, "finance", a.Tags[0])
	})

	t.Run("rejects unassigned id and empty owner", func(t *testing.T) {
		req := validRegisterRequest()
		req.ID = 0
		_, err := NewAsset(req, "alice", 1, now, l)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewAsset(validRegisterRequest(), "", 1, now, l)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestAssetMutations(t *testing.T) {
	l := DefaultLimits()
	newAsset := func() *Asset {
		a, err := NewAsset(validRegisterRequest(), "alice", 10, time.Now(), l)
		require.NoError(t, err)
		return a
	}

	t.Run("transfer returns previous owner and bumps modification height", func(t *testing.T) {
		a := newAsset()
		from := a.TransferTo("bob", 15)
		assert.Equal(t, id.Principal("alice"), from)
		assert.Equal(t, id.Principal("bob"), a.Owner)
		assert.Equal(t, id.Height(15), a.LastModifiedAt)
		assert.Equal(t, id.Height(10), a.RegisteredAt)
	})

	t.Run("add tag distinguishes malformed tags from a full set", func(t *testing.T) {
		a := newAsset()
		require.NoError(t, a.AddTag("archive", 11, l))
		assert.Equal(t, []string{"finance", "q3", "archive"}, a.Tags)

		assert.True(t, dErrors.HasCode(a.AddTag("", 12, l), dErrors.CodeMetadataTagValidation))
		assert.True(t, dErrors.HasCode(a.AddTag("archive", 12, l), dErrors.CodeMetadataTagValidation))

		a.Tags = tags(10)
		assert.True(t, dErrors.HasCode(a.AddTag("extra", 12, l), dErrors.CodeInvalidTagSet))
	})

	t.Run("apply metadata writes only present fields", func(t *testing.T) {
		a := newAsset()
		title := "Renamed"
		a.ApplyMetadata(&UpdateMetadataRequest{Designation: &title}, 20)
		assert.Equal(t, "Renamed", a.Designation)
		assert.Equal(t, "Scanned copy of the Q3 filing", a.Summary)
		assert.Equal(t, id.Height(20), a.LastModifiedAt)
	})

	t.Run("clone is deep", func(t *testing.T) {
		a := newAsset()
		c := a.Clone()
		c.Tags[0] = "changed"
		assert.Equal(t, "finance", a.Tags[0])
	})
}

func TestGrantDefaultDeny(t *testing.T) {
	assert.False(t, Authorizes(nil), "absent grant denies")

	g := NewGrant(1, "bob", "", 5)
	assert.True(t, Authorizes(g))
	assert.Equal(t, AccessLevelView, g.Level)

	g.Revoke(9)
	assert.False(t, Authorizes(g))
	assert.Equal(t, id.Height(5), g.GrantedAt, "revocation keeps the grant height")
	assert.Equal(t, id.Height(9), g.RevokedAt)
}
