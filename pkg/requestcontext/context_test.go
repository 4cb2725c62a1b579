package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "citadel/pkg/domain"
)

func TestAmbientValues(t *testing.T) {
	t.Run("unset values return zero and not-ok", func(t *testing.T) {
		ctx := context.Background()
		assert.True(t, Principal(ctx).IsNil())
		_, ok := Height(ctx)
		assert.False(t, ok)
		assert.Empty(t, RequestID(ctx))
	})

	t.Run("injected values round-trip", func(t *testing.T) {
		ctx := WithPrincipal(context.Background(), id.Principal("alice"))
		ctx = WithHeight(ctx, 42)
		ctx = WithRequestID(ctx, "req-1")

		assert.Equal(t, id.Principal("alice"), Principal(ctx))
		h, ok := Height(ctx)
		assert.True(t, ok)
		assert.Equal(t, id.Height(42), h)
		assert.Equal(t, "req-1", RequestID(ctx))
	})

	t.Run("request time is fixed once injected", func(t *testing.T) {
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		ctx := WithTime(context.Background(), fixed)
		assert.Equal(t, fixed, Now(ctx))
	})
}
