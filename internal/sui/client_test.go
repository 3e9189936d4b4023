package sui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/card"
	"github.com/cardforge/cardforge/internal/log"
)

// testSeed is a throwaway ed25519 seed used only in tests.
const testSeed = "0x0101010101010101010101010101010101010101010101010101010101010101"

// rpcFixture serves canned JSON-RPC results keyed by method and
// records every request for assertions.
type rpcFixture struct {
	t        *testing.T
	results  map[string]any
	errors   map[string]*rpcError
	requests []rpcRequest
}

func newRPCFixture(t *testing.T) *rpcFixture {
	return &rpcFixture{
		t:       t,
		results: map[string]any{},
		errors:  map[string]*rpcError{},
	}
}

func (f *rpcFixture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.requests = append(f.requests, req)

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr, ok := f.errors[req.Method]; ok {
			resp["error"] = rpcErr
		} else if result, ok := f.results[req.Method]; ok {
			resp["result"] = result
		} else {
			f.t.Fatalf("unexpected rpc method %s", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(f.t, json.NewEncoder(w).Encode(resp))
	})
}

func newTestClient(t *testing.T, f *rpcFixture, withSigner bool) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	cfg := ClientConfig{
		RPCURL:    srv.URL,
		PackageID: "0xpkg",
		Logger:    log.NewNop(),
	}
	if withSigner {
		signer, err := NewSigner(testSeed)
		require.NoError(t, err)
		cfg.Signer = signer
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestQueryEvents(t *testing.T) {
	f := newRPCFixture(t)
	f.results["suix_queryEvents"] = map[string]any{
		"data": []map[string]any{
			{
				"id":   map[string]any{"txDigest": "tx1", "eventSeq": "0"},
				"type": "0xpkg::card::CardCreated",
				"parsedJson": map[string]any{
					"card_id": "0xabc",
					"name":    "Thunder Dragon Emperor",
				},
			},
			{
				"id":   map[string]any{"txDigest": "tx2", "eventSeq": "1"},
				"type": "0xpkg::card::CardCreated",
			},
		},
		"hasNextPage": false,
	}

	client := newTestClient(t, f, false)
	events, err := client.QueryEvents(context.Background(), client.CardCreatedEventType(), 10, true)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "tx1:0", events[0].ID.String())
	assert.Equal(t, "Thunder Dragon Emperor", events[0].ParsedJSON["name"])
	assert.Equal(t, "tx2:1", events[1].ID.String())

	// Query goes out with the right filter, limit and order.
	require.Len(t, f.requests, 1)
	params := f.requests[0].Params
	assert.Equal(t, map[string]any{"MoveEventType": "0xpkg::card::CardCreated"}, params[0])
	assert.Equal(t, float64(10), params[2])
	assert.Equal(t, true, params[3])
}

func TestQueryEventsEmptyPageIsSuccess(t *testing.T) {
	f := newRPCFixture(t)
	f.results["suix_queryEvents"] = map[string]any{"data": []any{}, "hasNextPage": false}

	client := newTestClient(t, f, false)
	events, err := client.QueryEvents(context.Background(), "0xpkg::card::CardCreated", 10, true)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestQueryEventsRPCError(t *testing.T) {
	f := newRPCFixture(t)
	f.errors["suix_queryEvents"] = &rpcError{Code: -32000, Message: "node overloaded"}

	client := newTestClient(t, f, false)
	_, err := client.QueryEvents(context.Background(), "0xpkg::card::CardCreated", 10, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node overloaded")
}

func TestGetCard(t *testing.T) {
	f := newRPCFixture(t)
	f.results["sui_getObject"] = map[string]any{
		"data": map[string]any{
			"objectId": "0xabc",
			"content": map[string]any{
				"dataType": "moveObject",
				"type":     "0xpkg::card::Card",
				"fields": map[string]any{
					"name":        "Thunder Dragon Emperor",
					"element":     "Lightning",
					"rarity":      float64(3),
					"atk":         "1800",
					"def":         "1200",
					"hp":          "2000",
					"power_score": "5000",
					"image_url":   "",
				},
			},
		},
	}

	client := newTestClient(t, f, false)
	got, err := client.GetCard(context.Background(), "0xabc")
	require.NoError(t, err)

	assert.Equal(t, "0xabc", got.ID)
	assert.Equal(t, "Thunder Dragon Emperor", got.Name)
	assert.Equal(t, card.ElementLightning, got.Element)
	assert.Equal(t, card.RarityLegendary, got.Rarity)
	assert.Equal(t, uint64(1800), got.Atk)
	assert.Equal(t, uint64(1200), got.Def)
	assert.Equal(t, uint64(2000), got.HP)
	assert.Equal(t, uint64(5000), got.PowerScore)
}

func TestGetCardNotFound(t *testing.T) {
	f := newRPCFixture(t)
	f.results["sui_getObject"] = map[string]any{
		"error": map[string]any{"code": "notExists"},
	}

	client := newTestClient(t, f, false)
	_, err := client.GetCard(context.Background(), "0xmissing")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestGetCardNotMoveObject(t *testing.T) {
	f := newRPCFixture(t)
	f.results["sui_getObject"] = map[string]any{
		"data": map[string]any{
			"objectId": "0xpkg",
			"content":  map[string]any{"dataType": "package"},
		},
	}

	client := newTestClient(t, f, false)
	_, err := client.GetCard(context.Background(), "0xpkg")
	require.ErrorIs(t, err, ErrNotMoveObject)
}

func TestUpdateCardImageURL(t *testing.T) {
	f := newRPCFixture(t)
	f.results["unsafe_moveCall"] = map[string]any{"txBytes": "AAEC"}
	f.results["sui_executeTransactionBlock"] = map[string]any{"digest": "Digest123"}

	client := newTestClient(t, f, true)
	digest, err := client.UpdateCardImageURL(context.Background(), "0xabc", "https://agg/v1/blobs/Qm123")
	require.NoError(t, err)
	assert.Equal(t, "Digest123", digest)

	require.Len(t, f.requests, 2)

	build := f.requests[0]
	assert.Equal(t, "unsafe_moveCall", build.Method)
	assert.Equal(t, "0xpkg", build.Params[1])
	assert.Equal(t, "card", build.Params[2])
	assert.Equal(t, "update_image_url", build.Params[3])
	assert.Equal(t, []any{"0xabc", "https://agg/v1/blobs/Qm123"}, build.Params[5])

	exec := f.requests[1]
	assert.Equal(t, "sui_executeTransactionBlock", exec.Method)
	assert.Equal(t, "AAEC", exec.Params[0])
	sigs, ok := exec.Params[1].([]any)
	require.True(t, ok)
	require.Len(t, sigs, 1)
	assert.NotEmpty(t, sigs[0])
}

func TestUpdateCardImageURLWithoutSigner(t *testing.T) {
	client := newTestClient(t, newRPCFixture(t), false)
	_, err := client.UpdateCardImageURL(context.Background(), "0xabc", "url")
	require.ErrorIs(t, err, ErrNoSigner)
}

func TestCreateCardFindsCreatedObject(t *testing.T) {
	f := newRPCFixture(t)
	f.results["unsafe_moveCall"] = map[string]any{"txBytes": "AAEC"}
	f.results["sui_executeTransactionBlock"] = map[string]any{
		"digest": "Digest456",
		"objectChanges": []map[string]any{
			{"type": "mutated", "objectType": "0x2::coin::Coin", "objectId": "0xgas"},
			{"type": "created", "objectType": "0xpkg::card::Card", "objectId": "0xcard"},
		},
	}

	client := newTestClient(t, f, true)
	digest, cardID, err := client.CreateCard(context.Background(), "thunder dragon", card.Metadata{
		Name:    "Thunder Dragon Emperor",
		Element: card.ElementLightning,
	})
	require.NoError(t, err)
	assert.Equal(t, "Digest456", digest)
	assert.Equal(t, "0xcard", cardID)
}

func TestChainIdentifier(t *testing.T) {
	f := newRPCFixture(t)
	f.results["sui_getChainIdentifier"] = "4c78adac"

	client := newTestClient(t, f, false)
	id, err := client.ChainIdentifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4c78adac", id)
}
