//go:build !cgo

package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastEmbedUnavailableWithoutCGO(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "fastembed"}, nil)
	assert.ErrorIs(t, err, ErrFastEmbedNotAvailable)

	var p FastEmbedProvider
	_, err = p.EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, ErrFastEmbedNotAvailable)
	assert.Equal(t, 0, p.Dimension())
}
