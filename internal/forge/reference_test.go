package forge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/card"
)

func TestLoadReference(t *testing.T) {
	dir := t.TempDir()
	want := []byte{0xFF, 0xD8, 0xFF}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reference_legendary.jpg"), want, 0o600))

	got, err := LoadReference(dir, card.RarityLegendary)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadReferenceMissingFileIsNil(t *testing.T) {
	got, err := LoadReference(t.TempDir(), card.RarityCommon)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadReferenceEmptyDirOrBadRarity(t *testing.T) {
	got, err := LoadReference("", card.RarityCommon)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = LoadReference(t.TempDir(), card.Rarity(9))
	require.NoError(t, err)
	assert.Nil(t, got)
}
