// Package forge synthesizes card assets with Gemini: the name/element
// metadata generated at card creation and the character artwork
// generated for each CardCreated event.
//
// Both calls are terminal on failure: the generative service gets no
// internal retry, and a card whose synthesis fails simply does not
// receive an artifact in this pipeline run.
package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/cardforge/cardforge/internal/card"
	"github.com/cardforge/cardforge/internal/log"
)

var (
	// ErrNoImage indicates the image model returned no inline image
	// data in any response part.
	ErrNoImage = errors.New("no image data in response")

	// ErrNoJSON indicates no balanced JSON object could be extracted
	// from the text model's response.
	ErrNoJSON = errors.New("no JSON object in response")

	// ErrEmptyMetadata indicates the extracted metadata is unusable.
	ErrEmptyMetadata = errors.New("empty card metadata")
)

// models is the subset of the genai client the forge consumes.
// *genai.Models satisfies it; tests substitute a fake.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures a Forge.
type Config struct {
	APIKey     string
	TextModel  string
	ImageModel string
	Logger     log.Logger
}

// Forge calls the generative models.
type Forge struct {
	models     models
	textModel  string
	imageModel string
	logger     log.Logger
}

// New creates a Forge backed by the Gemini API.
func New(ctx context.Context, cfg Config) (*Forge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.TextModel == "" || cfg.ImageModel == "" {
		return nil, fmt.Errorf("text and image model names are required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Forge{
		models:     client.Models,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}, nil
}

// GenerateMetadata asks the text model for a card name and element
// based on the user's free-text description. The model is not
// guaranteed to return pure JSON; the first balanced object is
// extracted from the response text. An invalid element falls back to
// the default rather than failing the call.
func (f *Forge) GenerateMetadata(ctx context.Context, prompt string) (card.Metadata, error) {
	resp, err := f.models.GenerateContent(ctx, f.textModel, genai.Text(metadataPrompt(prompt)), nil)
	if err != nil {
		return card.Metadata{}, fmt.Errorf("generating metadata: %w", err)
	}

	text := responseText(resp)
	raw, err := extractJSON(text)
	if err != nil {
		return card.Metadata{}, fmt.Errorf("parsing metadata response: %w", err)
	}

	var meta struct {
		Name    string `json:"name"`
		Element string `json:"element"`
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return card.Metadata{}, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if strings.TrimSpace(meta.Name) == "" {
		return card.Metadata{}, ErrEmptyMetadata
	}

	element, valid := card.ParseElement(meta.Element)
	if !valid {
		f.logger.Warn("invalid element from model, using default",
			"element", meta.Element,
			"default", card.DefaultElement)
	}

	return card.Metadata{Name: strings.TrimSpace(meta.Name), Element: element}, nil
}

// GenerateArtwork asks the image model for character artwork matching
// the card's attributes. reference, when non-nil, is attached as a
// JPEG style reference the model imitates but must not copy from.
// Returns the raw image bytes. No internal retry: any failure is
// terminal for this card.
func (f *Forge) GenerateArtwork(ctx context.Context, c *card.Card, description string, reference []byte) ([]byte, error) {
	parts := []*genai.Part{genai.NewPartFromText(artworkPrompt(c, description, len(reference) > 0))}
	if len(reference) > 0 {
		parts = append(parts, genai.NewPartFromBytes(reference, "image/jpeg"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	f.logger.Info("generating artwork",
		"card", c.Name,
		"element", c.Element,
		"rarity", c.Rarity.String(),
		"reference", len(reference) > 0)

	resp, err := f.models.GenerateContent(ctx, f.imageModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("generating artwork: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, ErrNoImage
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// extractJSON returns the first balanced {...} substring of s. Brace
// depth is tracked outside JSON strings so payloads containing braces
// in values do not truncate the object.
func extractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}
