package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	ctx, c := NewContext(context.Background())
	require.Same(t, c, FromContext(ctx))

	Succeed(ctx, "Produto adicionado ao carrinho")
	Fail(ctx, "Produto sem preço disponível")
	Add(ctx, Warning, "Estoque baixo")

	got := Drain(ctx)
	assert.Equal(t, []Notification{
		{Level: Success, Message: "Produto adicionado ao carrinho"},
		{Level: Error, Message: "Produto sem preço disponível"},
		{Level: Warning, Message: "Estoque baixo"},
	}, got)
	assert.Empty(t, c.Drain())
}

func TestWithoutCollector(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() { Fail(ctx, "ignored") })
	assert.Nil(t, FromContext(ctx))
	assert.Nil(t, Drain(ctx))
}
