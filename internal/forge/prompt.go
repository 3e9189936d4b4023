package forge

import (
	"fmt"
	"strings"

	"github.com/cardforge/cardforge/internal/card"
)

// referenceInstruction is prepended when a style reference image is
// attached to the artwork request.
const referenceInstruction = `REFERENCE IMAGE: Study the art style, quality, and atmosphere from the reference image. Learn from its composition, lighting, and detail level. But DO NOT copy any frames, borders, text, or UI elements.`

// defaultDescription stands in when a card has no creation prompt.
const defaultDescription = "A powerful mystical entity"

// metadataPrompt builds the text-model prompt that produces a card
// name and element as JSON.
func metadataPrompt(description string) string {
	return fmt.Sprintf(`Based on this card description: %q

Generate card metadata following these rules:

1. NAME: Create a creative fantasy card name (2-4 words)
   - Must be epic and memorable
   - Examples: "Thunder Dragon Emperor", "Flame Spirit Warrior", "Crystal Ice Phoenix"

2. ELEMENT: Choose ONE element that best fits the description
   - Valid options: Fire, Water, Earth, Lightning, Dark, Light
   - Consider the theme and imagery of the prompt

Respond ONLY with valid JSON in this exact format:
{"name": "Card Name Here", "element": "ElementName"}

No additional text, just the JSON.`, description)
}

// artworkPrompt builds the deterministic image-model prompt for a
// card. Identical inputs always yield the identical prompt.
func artworkPrompt(c *card.Card, description string, hasReference bool) string {
	if strings.TrimSpace(description) == "" {
		description = defaultDescription
	}

	var b strings.Builder
	b.WriteString("Create a high-quality fantasy character illustration for a trading card game.\n\n")
	if hasReference {
		b.WriteString(referenceInstruction)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "CHARACTER: %s - %s\n\n", c.Name, description)

	b.WriteString("STYLE REQUIREMENTS:\n")
	b.WriteString("- Epic fantasy art style, detailed and vibrant\n")
	fmt.Fprintf(&b, "- %s\n", card.StylePrompt(c.Element))
	fmt.Fprintf(&b, "- %s quality: %s\n", c.Rarity, c.Rarity.QualityPrompt())
	b.WriteString("- Dynamic pose showing power and personality\n")
	b.WriteString("- Cosmic/magical background with stars and energy swirls\n")
	b.WriteString("- Full body or upper body portrait\n")
	b.WriteString("- Professional trading card game artwork quality\n")
	if hasReference {
		b.WriteString("- Match the artistic quality and atmosphere from the reference\n")
	}

	b.WriteString("\nDO NOT INCLUDE:\n")
	b.WriteString("- No text, numbers, or card stats\n")
	b.WriteString("- No borders or frames\n")
	b.WriteString("- No card template elements\n")
	b.WriteString("- No blank or white parts on image\n")
	b.WriteString("- Just the pure character artwork\n")

	fmt.Fprintf(&b, "\nFocus on creating beautiful, powerful character art with %s theme", c.Element)
	if hasReference {
		b.WriteString(" that matches the reference's quality and style")
	}
	b.WriteString(".")

	return b.String()
}
