package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseElement(t *testing.T) {
	tests := []struct {
		in    string
		want  Element
		valid bool
	}{
		{"Fire", ElementFire, true},
		{"Light", ElementLight, true},
		{"fire", DefaultElement, false}, // case-sensitive, as on-chain
		{"Plasma", DefaultElement, false},
		{"", DefaultElement, false},
	}
	for _, tt := range tests {
		got, valid := ParseElement(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.valid, valid, "input %q", tt.in)
	}
}

func TestStylePromptFallback(t *testing.T) {
	for _, e := range Elements {
		assert.NotEmpty(t, StylePrompt(e))
		assert.NotEqual(t, genericStyle, StylePrompt(e))
	}

	// Unknown elements get the generic fragment, never an empty string.
	assert.Equal(t, genericStyle, StylePrompt(Element("Plasma")))
	assert.Equal(t, genericStyle, StylePrompt(Element("")))
}

func TestRarityQualityPrompt(t *testing.T) {
	assert.Equal(t, "standard fantasy art", RarityCommon.QualityPrompt())
	assert.Equal(t, "good detail, quality artwork", RarityUncommon.QualityPrompt())
	assert.Equal(t, "high detail, premium quality", RarityEpic.QualityPrompt())
	assert.Equal(t, "extremely detailed, masterpiece quality", RarityLegendary.QualityPrompt())

	// Past the known range we degrade to the lowest tier rather than panic.
	assert.Equal(t, "standard fantasy art", Rarity(7).QualityPrompt())
}

func TestRarityString(t *testing.T) {
	assert.Equal(t, "Legendary", RarityLegendary.String())
	assert.Equal(t, "Rarity(9)", Rarity(9).String())
	assert.False(t, Rarity(4).Valid())
	assert.True(t, RarityEpic.Valid())
}

func TestDecodeCreatedEvent(t *testing.T) {
	payload := map[string]any{
		"card_id":      "0xabc",
		"name":         "Thunder Dragon Emperor",
		"element":      "Lightning",
		"rarity":       float64(3),
		"power_score":  "5000",
		"final_prompt": "thunder dragon emperor",
	}

	ev, err := DecodeCreatedEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", ev.CardID)
	assert.Equal(t, "Thunder Dragon Emperor", ev.Name)
	assert.Equal(t, ElementLightning, ev.Element)
	assert.Equal(t, RarityLegendary, ev.Rarity)
	assert.Equal(t, uint64(5000), ev.PowerScore)
	assert.Equal(t, "thunder dragon emperor", ev.Prompt)
}

func TestDecodeCreatedEventInvalidElement(t *testing.T) {
	ev, err := DecodeCreatedEvent(map[string]any{
		"card_id":      "0xabc",
		"name":         "Void Walker",
		"element":      "Plasma",
		"rarity":       float64(1),
		"final_prompt": "void walker",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultElement, ev.Element)
}

func TestDecodeCreatedEventMissingFields(t *testing.T) {
	_, err := DecodeCreatedEvent(map[string]any{"name": "x"})
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, err = DecodeCreatedEvent(map[string]any{
		"card_id":      "0xabc",
		"name":         "x",
		"final_prompt": "x",
		"rarity":       "not-a-number",
	})
	require.ErrorIs(t, err, ErrMalformedEvent)
}
