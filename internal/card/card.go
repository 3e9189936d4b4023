// Package card defines the card domain model shared by the forge
// pipeline, the CLI and the HTTP API: elements, rarities, on-chain
// card attributes, and the prompt fragments used for artwork
// synthesis.
package card

import (
	"errors"
	"fmt"
	"strconv"
)

// Element is the elemental affinity of a card. The set is fixed by
// the on-chain contract.
type Element string

// Valid elements.
const (
	ElementFire      Element = "Fire"
	ElementWater     Element = "Water"
	ElementEarth     Element = "Earth"
	ElementLightning Element = "Lightning"
	ElementDark      Element = "Dark"
	ElementLight     Element = "Light"
)

// DefaultElement is substituted when a generated or decoded element
// is not part of the valid set.
const DefaultElement = ElementLight

// Elements lists every valid element in display order.
var Elements = []Element{
	ElementFire, ElementWater, ElementEarth,
	ElementLightning, ElementDark, ElementLight,
}

// ParseElement validates s against the element set. The second return
// value reports whether s was valid; when it is false the result is
// DefaultElement.
func ParseElement(s string) (Element, bool) {
	for _, e := range Elements {
		if string(e) == s {
			return e, true
		}
	}
	return DefaultElement, false
}

// elementStyles maps each element to the artwork style fragment used
// in synthesis prompts.
var elementStyles = map[Element]string{
	ElementFire:      "surrounded by flames and embers, warm orange and red tones, fiery atmosphere",
	ElementWater:     "surrounded by flowing water and bubbles, cool blue tones, aquatic atmosphere",
	ElementEarth:     "surrounded by rocks and nature, green and brown tones, natural atmosphere",
	ElementLightning: "surrounded by electric sparks and lightning bolts, bright yellow and purple tones, electric atmosphere",
	ElementDark:      "surrounded by shadows and dark energy, deep purple and black tones, mysterious atmosphere",
	ElementLight:     "surrounded by radiant light and sparkles, bright white and golden tones, divine atmosphere",
}

// genericStyle is the fallback fragment for elements outside the
// fixed table.
const genericStyle = "mystical energy surrounding"

// StylePrompt returns the artwork style fragment for e, falling back
// to a generic fragment for unknown elements.
func StylePrompt(e Element) string {
	if s, ok := elementStyles[e]; ok {
		return s
	}
	return genericStyle
}

// Rarity is the card rarity ordinal (0 = lowest).
type Rarity int

// Rarity ordinals, lowest to highest.
const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityEpic
	RarityLegendary
)

var rarityNames = [...]string{"Common", "Uncommon", "Epic", "Legendary"}

// Valid reports whether r is one of the four known ordinals.
func (r Rarity) Valid() bool {
	return r >= RarityCommon && r <= RarityLegendary
}

func (r Rarity) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rarity(%d)", int(r))
	}
	return rarityNames[r]
}

// QualityPrompt returns the quality fragment for r used in synthesis
// prompts. Out-of-range rarities degrade to the lowest tier.
func (r Rarity) QualityPrompt() string {
	switch r {
	case RarityLegendary:
		return "extremely detailed, masterpiece quality"
	case RarityEpic:
		return "high detail, premium quality"
	case RarityUncommon:
		return "good detail, quality artwork"
	default:
		return "standard fantasy art"
	}
}

// Card is the authoritative on-chain record as read through the
// fullnode. The pipeline only ever writes ImageURL.
type Card struct {
	ID         string
	Name       string
	Element    Element
	Rarity     Rarity
	Atk        uint64
	Def        uint64
	HP         uint64
	PowerScore uint64
	ImageURL   string
}

// Metadata is the AI-generated name/element pair attached to a card
// at creation time.
type Metadata struct {
	Name    string  `json:"name"`
	Element Element `json:"element"`
}

// CreatedEvent is the decoded payload of a card::CardCreated move
// event.
type CreatedEvent struct {
	CardID     string
	Name       string
	Element    Element
	Rarity     Rarity
	PowerScore uint64
	Prompt     string
}

// ErrMalformedEvent indicates a CardCreated payload that is missing
// required fields or carries the wrong types.
var ErrMalformedEvent = errors.New("malformed CardCreated event")

// DecodeCreatedEvent decodes the parsed JSON payload of a CardCreated
// event. The contract emits move u64 values as decimal strings and
// u8 rarity as a JSON number; both are tolerated here.
func DecodeCreatedEvent(payload map[string]any) (CreatedEvent, error) {
	ev := CreatedEvent{}

	var ok bool
	if ev.CardID, ok = payload["card_id"].(string); !ok || ev.CardID == "" {
		return ev, fmt.Errorf("%w: missing card_id", ErrMalformedEvent)
	}
	if ev.Name, ok = payload["name"].(string); !ok {
		return ev, fmt.Errorf("%w: missing name", ErrMalformedEvent)
	}
	if ev.Prompt, ok = payload["final_prompt"].(string); !ok {
		return ev, fmt.Errorf("%w: missing final_prompt", ErrMalformedEvent)
	}

	raw, _ := payload["element"].(string)
	ev.Element, _ = ParseElement(raw)

	rarity, err := decodeUint(payload["rarity"])
	if err != nil {
		return ev, fmt.Errorf("%w: rarity: %v", ErrMalformedEvent, err)
	}
	ev.Rarity = Rarity(rarity)

	// power_score is informational; tolerate absence.
	if v, err := decodeUint(payload["power_score"]); err == nil {
		ev.PowerScore = v
	}

	return ev, nil
}

// decodeUint accepts the JSON encodings Sui uses for move integers:
// numbers for u8/u16 and decimal strings for u64.
func decodeUint(v any) (uint64, error) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %v", n)
		}
		return uint64(n), nil
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, err
		}
		return u, nil
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
