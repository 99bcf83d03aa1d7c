package sui

import (
	"encoding/json"
	"strconv"
	"strings"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC level error returned by the full node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return "rpc error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// EventID identifies an event by transaction digest and sequence number.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// EventEnvelope is one entry of a suix_queryEvents page.
type EventEnvelope struct {
	ID                EventID         `json:"id"`
	PackageID         string          `json:"packageId"`
	TransactionModule string          `json:"transactionModule"`
	Sender            string          `json:"sender"`
	Type              string          `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsedJson"`
	TimestampMs       *Uint64         `json:"timestampMs"`
}

type eventPage struct {
	Data        []EventEnvelope `json:"data"`
	NextCursor  *EventID        `json:"nextCursor"`
	HasNextPage bool            `json:"hasNextPage"`
}

// MoveContent is the parsed Move content of an object.
type MoveContent struct {
	DataType string                     `json:"dataType"`
	Type     string                     `json:"type"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

// ObjectData is the object payload of a sui_getObject response.
type ObjectData struct {
	ObjectID string       `json:"objectId"`
	Version  string       `json:"version"`
	Digest   string       `json:"digest"`
	Type     string       `json:"type"`
	Content  *MoveContent `json:"content"`
}

type objectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id"`
}

type objectResponse struct {
	Data  *ObjectData  `json:"data"`
	Error *objectError `json:"error"`
}

type ownedPage struct {
	Data        []objectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

// Uint64 decodes u64 values that the node encodes either as JSON strings or numbers.
// Values that are neither decode to zero rather than failing the whole payload.
type Uint64 uint64

func (u *Uint64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		*u = 0
		return nil
	}
	*u = Uint64(v)
	return nil
}

// uid is the {"id": "0x..."} wrapper Move uses for object IDs.
type uid struct {
	ID string `json:"id"`
}
