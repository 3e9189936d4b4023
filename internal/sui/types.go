package sui

import (
	"encoding/json"
	"fmt"
)

// EventID identifies one event in the chain's append-only event log.
// Events from the same transaction are distinguished by sequence.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// String returns the composite id used as the dedup key.
func (id EventID) String() string {
	return fmt.Sprintf("%s:%s", id.TxDigest, id.EventSeq)
}

// Event is one move event as returned by suix_queryEvents.
type Event struct {
	ID         EventID        `json:"id"`
	Type       string         `json:"type"`
	ParsedJSON map[string]any `json:"parsedJson"`
}

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcError is the JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcResponse is a JSON-RPC 2.0 response envelope. Result is decoded
// by the caller once the error branch is ruled out.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// eventPage is the result shape of suix_queryEvents.
type eventPage struct {
	Data        []Event  `json:"data"`
	NextCursor  *EventID `json:"nextCursor"`
	HasNextPage bool     `json:"hasNextPage"`
}

// objectResponse is the result shape of sui_getObject with
// showContent enabled.
type objectResponse struct {
	Data *struct {
		ObjectID string `json:"objectId"`
		Content  *struct {
			DataType string         `json:"dataType"`
			Type     string         `json:"type"`
			Fields   map[string]any `json:"fields"`
		} `json:"content"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// txBytesResult is the result shape of unsafe_moveCall.
type txBytesResult struct {
	TxBytes string `json:"txBytes"`
}

// executeResult is the subset of sui_executeTransactionBlock's result
// the pipeline consumes.
type executeResult struct {
	Digest        string `json:"digest"`
	ObjectChanges []struct {
		Type       string `json:"type"`
		ObjectType string `json:"objectType"`
		ObjectID   string `json:"objectId"`
	} `json:"objectChanges"`
}
