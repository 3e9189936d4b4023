package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cardforge/cardforge/internal/card"
	"github.com/cardforge/cardforge/internal/forge"
	"github.com/cardforge/cardforge/internal/log"
	"github.com/cardforge/cardforge/internal/walrus"
)

// MetadataGenerator produces a card name and element from a player
// prompt.
type MetadataGenerator interface {
	GenerateMetadata(ctx context.Context, prompt string) (card.Metadata, error)
}

// ArtworkGenerator synthesizes card artwork as PNG bytes.
type ArtworkGenerator interface {
	GenerateArtwork(ctx context.Context, c *card.Card, description string, reference []byte) ([]byte, error)
}

// BlobStore persists blobs and resolves their public read URLs.
type BlobStore interface {
	Store(ctx context.Context, blob []byte, opts walrus.StoreOptions) (*walrus.StoreResult, error)
	URL(blobID string) string
}

// ForgeHandler handles card generation and upload requests.
type ForgeHandler struct {
	metadata     MetadataGenerator
	artwork      ArtworkGenerator
	blobs        BlobStore
	referenceDir string
	storeEpochs  int
	logger       log.Logger
}

// NewForgeHandler creates the forge handler from the server config.
func NewForgeHandler(cfg ServerConfig) (*ForgeHandler, error) {
	if cfg.Metadata == nil || cfg.Artwork == nil {
		return nil, errors.New("api: metadata and artwork generators are required")
	}
	if cfg.Blobs == nil {
		return nil, errors.New("api: blob store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &ForgeHandler{
		metadata:     cfg.Metadata,
		artwork:      cfg.Artwork,
		blobs:        cfg.Blobs,
		referenceDir: cfg.ReferenceDir,
		storeEpochs:  cfg.StoreEpochs,
		logger:       logger,
	}, nil
}

// RegisterRoutes registers forge routes on the given mux.
func (h *ForgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/metadata", h.handleMetadata)
	mux.HandleFunc("POST /api/artwork", h.handleArtwork)
	mux.HandleFunc("POST /api/upload", h.handleUpload)
}

type metadataRequest struct {
	Prompt string `json:"prompt"`
}

type metadataResponse struct {
	Name    string `json:"name"`
	Element string `json:"element"`
}

func (h *ForgeHandler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "prompt is required")
		return
	}

	meta, err := h.metadata.GenerateMetadata(r.Context(), req.Prompt)
	if err != nil {
		h.logger.Error("metadata generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "generation_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, metadataResponse{
		Name:    meta.Name,
		Element: string(meta.Element),
	})
}

type artworkRequest struct {
	Name        string `json:"name"`
	Element     string `json:"element"`
	Description string `json:"description"`
	Rarity      int    `json:"rarity"`
}

type artworkResponse struct {
	ImageURL      string `json:"imageUrl"`
	Rarity        string `json:"rarity"`
	UsedReference bool   `json:"usedReference"`
}

func (h *ForgeHandler) handleArtwork(w http.ResponseWriter, r *http.Request) {
	var req artworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	rarity := card.Rarity(req.Rarity)
	if !rarity.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "rarity out of range")
		return
	}

	element, ok := card.ParseElement(req.Element)
	if !ok {
		h.logger.Warn("unknown element in artwork request",
			"element", req.Element, "fallback", element)
	}

	reference, err := forge.LoadReference(h.referenceDir, rarity)
	if err != nil {
		// A bad reference degrades quality, never blocks generation.
		h.logger.Warn("failed to load reference image", "rarity", rarity, "error", err)
		reference = nil
	}

	c := &card.Card{
		Name:    req.Name,
		Element: element,
		Rarity:  rarity,
	}
	image, err := h.artwork.GenerateArtwork(r.Context(), c, req.Description, reference)
	if err != nil {
		h.logger.Error("artwork generation failed", "card", req.Name, "error", err)
		writeError(w, http.StatusBadGateway, "generation_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, artworkResponse{
		ImageURL:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
		Rarity:        rarity.String(),
		UsedReference: reference != nil,
	})
}

type uploadRequest struct {
	ImageData string `json:"imageData"`
}

type uploadResponse struct {
	BlobID           string `json:"blobId"`
	ObjectID         string `json:"objectId"`
	URL              string `json:"url"`
	AlreadyCertified bool   `json:"alreadyCertified"`
}

func (h *ForgeHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	blob, err := decodeImageData(req.ImageData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.blobs.Store(r.Context(), blob, walrus.StoreOptions{Epochs: h.storeEpochs})
	if err != nil {
		h.logger.Error("blob upload failed", "error", err)
		writeError(w, http.StatusBadGateway, "upload_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		BlobID:           result.BlobID,
		ObjectID:         result.ObjectID,
		URL:              h.blobs.URL(result.BlobID),
		AlreadyCertified: result.AlreadyCertified,
	})
}

// decodeImageData accepts both raw base64 and data-URL payloads.
func decodeImageData(data string) ([]byte, error) {
	if data == "" {
		return nil, errors.New("imageData is required")
	}
	if strings.HasPrefix(data, "data:") {
		_, encoded, ok := strings.Cut(data, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		data = encoded
	}
	blob, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.New("imageData is not valid base64")
	}
	if len(blob) == 0 {
		return nil, errors.New("imageData decodes to an empty image")
	}
	return blob, nil
}
