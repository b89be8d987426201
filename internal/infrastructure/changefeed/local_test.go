package changefeed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFanOut(t *testing.T) {
	ctx := context.Background()
	feed := NewLocal()

	a, cancelA, err := feed.Subscribe(ctx, "products")
	require.NoError(t, err)
	b, cancelB, err := feed.Subscribe(ctx, "products")
	require.NoError(t, err)
	other, cancelOther, err := feed.Subscribe(ctx, "orders")
	require.NoError(t, err)
	defer cancelA()
	defer cancelB()
	defer cancelOther()

	require.NoError(t, feed.Publish(ctx, "products"))
	require.NoError(t, feed.Publish(ctx, "products"))

	assert.Len(t, a, 1, "signals coalesce")
	assert.Len(t, b, 1)
	assert.Len(t, other, 0)
}

func TestLocalUnsubscribe(t *testing.T) {
	ctx := context.Background()
	feed := NewLocal()
	ch, cancel, err := feed.Subscribe(ctx, "products")
	require.NoError(t, err)

	cancel()
	cancel()
	require.NoError(t, feed.Publish(ctx, "products"))
	assert.Len(t, ch, 0)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "docs:artifacts/a/public/data/products", Channel("artifacts/a/public/data/products"))
}
