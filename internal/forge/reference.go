package forge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardforge/cardforge/internal/card"
)

// referenceFile returns the expected reference image filename for a
// rarity, e.g. reference_legendary.jpg.
func referenceFile(r card.Rarity) string {
	return "reference_" + strings.ToLower(r.String()) + ".jpg"
}

// LoadReference reads the per-rarity style reference image from dir.
// A missing file is not an error: synthesis proceeds without a
// reference, it just loses the style anchor.
func LoadReference(dir string, r card.Rarity) ([]byte, error) {
	if dir == "" || !r.Valid() {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, referenceFile(r)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading reference image: %w", err)
	}
	return data, nil
}
