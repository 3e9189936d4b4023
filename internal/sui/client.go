// Package sui is a minimal Sui fullnode client covering exactly what
// the forge pipeline needs: querying move events, reading card
// objects, and submitting the two card move calls. It speaks the
// JSON-RPC 2.0 HTTP API directly rather than wrapping a full SDK.
package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cardforge/cardforge/internal/card"
	"github.com/cardforge/cardforge/internal/log"
)

// cardModule is the move module all card calls target.
const cardModule = "card"

// defaultGasBudget is the gas budget (in MIST) for card move calls.
const defaultGasBudget = "10000000"

var (
	// ErrObjectNotFound indicates the requested object does not exist
	// or has been deleted.
	ErrObjectNotFound = errors.New("object not found")

	// ErrNotMoveObject indicates the object exists but does not carry
	// move-object content (e.g. a package id was passed).
	ErrNotMoveObject = errors.New("object is not a move object")

	// ErrNoSigner indicates a write was attempted on a read-only client.
	ErrNoSigner = errors.New("client has no signer configured")
)

// Client talks to a Sui fullnode.
type Client struct {
	rpcURL     string
	packageID  string
	signer     *Signer
	httpClient *http.Client
	logger     log.Logger
}

// ClientConfig configures a Client. Signer may be nil for read-only
// use (the HTTP API service reads but never writes).
type ClientConfig struct {
	RPCURL    string
	PackageID string
	Signer    *Signer
	Logger    log.Logger
}

// NewClient creates a fullnode client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		rpcURL:     cfg.RPCURL,
		packageID:  cfg.PackageID,
		signer:     cfg.Signer,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// CardCreatedEventType returns the fully qualified move event type
// the pipeline filters on.
func (c *Client) CardCreatedEventType() string {
	return c.packageID + "::" + cardModule + "::CardCreated"
}

// ChainIdentifier returns the chain id of the connected network.
// Used as a startup connectivity probe.
func (c *Client) ChainIdentifier(ctx context.Context) (string, error) {
	var id string
	if err := c.call(ctx, "sui_getChainIdentifier", nil, &id); err != nil {
		return "", err
	}
	return id, nil
}

// QueryEvents returns up to limit events matching the given move
// event type. An empty page is success, not an error. Order follows
// the feed: most recent first when descending is true.
func (c *Client) QueryEvents(ctx context.Context, eventType string, limit int, descending bool) ([]Event, error) {
	params := []any{
		map[string]any{"MoveEventType": eventType},
		nil, // cursor: always from the head; dedup handles overlap
		limit,
		descending,
	}

	var page eventPage
	if err := c.call(ctx, "suix_queryEvents", params, &page); err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return page.Data, nil
}

// GetCard reads the current state of a card object.
func (c *Client) GetCard(ctx context.Context, cardID string) (*card.Card, error) {
	params := []any{cardID, map[string]any{"showContent": true}}

	var resp objectResponse
	if err := c.call(ctx, "sui_getObject", params, &resp); err != nil {
		return nil, fmt.Errorf("reading card %s: %w", cardID, err)
	}
	if resp.Error != nil || resp.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, cardID)
	}
	if resp.Data.Content == nil || resp.Data.Content.DataType != "moveObject" {
		return nil, fmt.Errorf("%w: %s", ErrNotMoveObject, cardID)
	}

	return cardFromFields(resp.Data.ObjectID, resp.Data.Content.Fields)
}

// UpdateCardImageURL submits the card::update_image_url move call and
// returns the transaction digest. This is the pipeline's single
// externally visible write.
func (c *Client) UpdateCardImageURL(ctx context.Context, cardID, url string) (string, error) {
	result, err := c.moveCall(ctx, "update_image_url", []any{cardID, url})
	if err != nil {
		return "", fmt.Errorf("updating card %s: %w", cardID, err)
	}
	c.logger.Info("card image url updated",
		"card_id", cardID,
		"url", url,
		"digest", result.Digest)
	return result.Digest, nil
}

// CreateCard submits the card::create_card move call. Returns the
// transaction digest and, when present in the object changes, the id
// of the created card object.
func (c *Client) CreateCard(ctx context.Context, prompt string, meta card.Metadata) (digest, cardID string, err error) {
	// 0x8 is the system Random object required by the contract.
	result, err := c.moveCall(ctx, "create_card", []any{"0x8", prompt, meta.Name, string(meta.Element)})
	if err != nil {
		return "", "", fmt.Errorf("creating card: %w", err)
	}

	for _, change := range result.ObjectChanges {
		if change.Type == "created" && hasCardType(change.ObjectType) {
			cardID = change.ObjectID
			break
		}
	}
	return result.Digest, cardID, nil
}

// moveCall builds a transaction via unsafe_moveCall, signs it and
// executes it, waiting for local execution.
func (c *Client) moveCall(ctx context.Context, function string, args []any) (*executeResult, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}
	if c.packageID == "" {
		return nil, fmt.Errorf("package id is required")
	}

	buildParams := []any{
		c.signer.Address(),
		c.packageID,
		cardModule,
		function,
		[]any{}, // no type arguments
		args,
		nil, // gas object: let the node pick
		defaultGasBudget,
	}

	var built txBytesResult
	if err := c.call(ctx, "unsafe_moveCall", buildParams, &built); err != nil {
		return nil, fmt.Errorf("building %s transaction: %w", function, err)
	}

	signature, err := c.signer.SignTransaction(built.TxBytes)
	if err != nil {
		return nil, fmt.Errorf("signing %s transaction: %w", function, err)
	}

	execParams := []any{
		built.TxBytes,
		[]string{signature},
		map[string]any{"showEffects": true, "showObjectChanges": true},
		"WaitForLocalExecution",
	}

	var result executeResult
	if err := c.call(ctx, "sui_executeTransactionBlock", execParams, &result); err != nil {
		return nil, fmt.Errorf("executing %s transaction: %w", function, err)
	}
	return &result, nil
}

// call performs one JSON-RPC request against the fullnode.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: fullnode returned status %d: %s", method, resp.StatusCode, body)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unmarshaling %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %w", method, envelope.Error)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("unmarshaling %s result: %w", method, err)
		}
	}
	return nil
}

// cardFromFields maps move-object fields onto the card model. Move
// u64 values arrive as decimal strings, u8 rarity as a number.
func cardFromFields(objectID string, fields map[string]any) (*card.Card, error) {
	name, _ := fields["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("card %s: missing name field", objectID)
	}

	element, _ := fields["element"].(string)
	parsed, _ := card.ParseElement(element)

	rarity, err := fieldUint(fields, "rarity")
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", objectID, err)
	}

	atk, err := fieldUint(fields, "atk")
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", objectID, err)
	}
	def, err := fieldUint(fields, "def")
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", objectID, err)
	}
	hp, err := fieldUint(fields, "hp")
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", objectID, err)
	}

	c := &card.Card{
		ID:      objectID,
		Name:    name,
		Element: parsed,
		Rarity:  card.Rarity(rarity),
		Atk:     atk,
		Def:     def,
		HP:      hp,
	}
	if ps, err := fieldUint(fields, "power_score"); err == nil {
		c.PowerScore = ps
	}
	if url, ok := fields["image_url"].(string); ok {
		c.ImageURL = url
	}
	return c, nil
}

func fieldUint(fields map[string]any, key string) (uint64, error) {
	switch v := fields[key].(type) {
	case float64:
		return uint64(v), nil
	case string:
		u, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", key, err)
		}
		return u, nil
	default:
		return 0, fmt.Errorf("field %s: missing or unsupported type %T", key, v)
	}
}

func hasCardType(objectType string) bool {
	return strings.Contains(objectType, "::"+cardModule+"::Card")
}
