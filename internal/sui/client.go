// Package sui provides a JSON-RPC client for the Sui full node queries the
// marketplace depends on: event queries and object lookups.
package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/models"
)

// ErrObjectNotFound is returned when an object no longer exists on-chain,
// e.g. a listing that has been bought or withdrawn.
var ErrObjectNotFound = errors.New("object not found")

var fullnodeURLs = map[string]string{
	"mainnet":  "https://fullnode.mainnet.sui.io:443",
	"testnet":  "https://fullnode.testnet.sui.io:443",
	"devnet":   "https://fullnode.devnet.sui.io:443",
	"localnet": "http://127.0.0.1:9000",
}

// FullnodeURL returns the public full node endpoint for a network name.
func FullnodeURL(network string) (string, error) {
	u, ok := fullnodeURLs[network]
	if !ok {
		return "", fmt.Errorf("unknown network %q", network)
	}
	return u, nil
}

// MaxPageSize is the largest page a full node returns for paginated queries.
const MaxPageSize = 50

// ClientConfig holds transport tuning for the RPC client.
// MaxRetries applies to event and owned-object queries only.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client talks JSON-RPC 2.0 to a Sui full node.
type Client struct {
	rpcURL     string
	httpClient *retryablehttp.Client
	// lookupClient serves single-object lookups, which are never retried:
	// an unresolved listing is dropped until the next refresh.
	lookupClient *retryablehttp.Client
	nextID       atomic.Uint64
}

// NewClient creates a new Sui RPC client.
func NewClient(rpcURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}

	return &Client{
		rpcURL:       rpcURL,
		httpClient:   newTransport(timeout, cfg.MaxRetries, cfg.RetryDelayBase),
		lookupClient: newTransport(timeout, 0, cfg.RetryDelayBase),
	}
}

func newTransport(timeout time.Duration, retries int, delay time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = delay
	rc.RetryWaitMax = delay * time.Duration(retries+1)
	rc.Backoff = retryablehttp.LinearJitterBackoff
	rc.HTTPClient.Timeout = timeout
	rc.Logger = logger.Leveled{}
	return rc
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	return c.do(ctx, c.httpClient, method, params, out)
}

// do performs one JSON-RPC request over hc and decodes its result into out.
func (c *Client) do(ctx context.Context, hc *retryablehttp.Client, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("%s: %w", method, rr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// QueryEvents fetches up to limit events of a Move event type, following the
// node's cursor across pages of at most MaxPageSize.
// Events whose payload matches no known shape are logged and skipped.
func (c *Client) QueryEvents(ctx context.Context, eventType string, kind models.EventKind, limit int, descending bool) ([]models.Event, error) {
	query := map[string]string{"MoveEventType": eventType}
	events := make([]models.Event, 0, min(limit, MaxPageSize))

	var cursor *EventID
	fetched := 0
	for fetched < limit {
		var page eventPage
		params := []interface{}{query, cursor, min(limit-fetched, MaxPageSize), descending}
		if err := c.call(ctx, "suix_queryEvents", params, &page); err != nil {
			return nil, err
		}
		fetched += len(page.Data)

		for _, env := range page.Data {
			e, err := ParseEvent(env, kind)
			if err != nil {
				logger.Warn("Skipping %s event: %v", kind, err)
				continue
			}
			events = append(events, e)
		}

		if !page.HasNextPage || page.NextCursor == nil || len(page.Data) == 0 {
			break
		}
		cursor = page.NextCursor
	}
	return events, nil
}

// GetObject fetches an object with its Move content. Lookups are not retried.
func (c *Client) GetObject(ctx context.Context, id string) (*ObjectData, error) {
	opts := map[string]bool{"showContent": true, "showType": true}
	var resp objectResponse
	if err := c.do(ctx, c.lookupClient, "sui_getObject", []interface{}{id, opts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		switch resp.Error.Code {
		case "notExists", "deleted":
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		default:
			return nil, fmt.Errorf("object %s: %s", id, resp.Error.Code)
		}
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	return resp.Data, nil
}

// GetListing resolves a listing object.
func (c *Client) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	obj, err := c.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	return ParseListing(obj)
}

// GetOwnedObjects lists up to limit objects of structType owned by owner.
func (c *Client) GetOwnedObjects(ctx context.Context, owner, structType string, limit int) ([]ObjectData, error) {
	query := map[string]interface{}{
		"filter":  map[string]string{"StructType": structType},
		"options": map[string]bool{"showContent": true, "showType": true},
	}
	var page ownedPage
	if err := c.call(ctx, "suix_getOwnedObjects", []interface{}{owner, query, nil, limit}, &page); err != nil {
		return nil, err
	}

	objects := make([]ObjectData, 0, len(page.Data))
	for _, r := range page.Data {
		if r.Data != nil {
			objects = append(objects, *r.Data)
		}
	}
	return objects, nil
}

// GetOwnedCars lists the car NFTs owned by owner. Objects without readable
// content are skipped.
func (c *Client) GetOwnedCars(ctx context.Context, owner, structType string, limit int) ([]models.OwnedCar, error) {
	objects, err := c.GetOwnedObjects(ctx, owner, structType, limit)
	if err != nil {
		return nil, err
	}
	cars := make([]models.OwnedCar, 0, len(objects))
	for i := range objects {
		car, err := ParseOwnedCar(&objects[i])
		if err != nil {
			logger.Debug("Skipping owned object %s: %v", objects[i].ObjectID, err)
			continue
		}
		cars = append(cars, *car)
	}
	return cars, nil
}
