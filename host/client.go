package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"swaproute/core/types"
	"swaproute/native/router"
)

// Wire forms shared by the venue, adapter, and bank HTTP clients.

type callWire struct {
	ExecutionID uint64 `json:"execution_id"`
	Kind        string `json:"kind"`
	Target      string `json:"target"`
	OfferKind   string `json:"offer_kind"`
	OfferID     string `json:"offer_id"`
	OfferAmount string `json:"offer_amount"`
	AskKind     string `json:"ask_kind,omitempty"`
	AskID       string `json:"ask_id,omitempty"`
}

type eventWire struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type eventsResponse struct {
	Events []eventWire `json:"events"`
}

type simulateRequest struct {
	OfferKind   string `json:"offer_kind"`
	OfferID     string `json:"offer_id"`
	OfferAmount string `json:"offer_amount"`
	AskKind     string `json:"ask_kind"`
	AskID       string `json:"ask_id"`
}

type simulateResponse struct {
	Output string `json:"output"`
}

func kindLabel(k router.AssetKind) string {
	if k == router.KindWrapped {
		return "wrapped"
	}
	return "native"
}

func encodeCall(call router.Call) callWire {
	return callWire{
		ExecutionID: call.ExecutionID,
		Kind:        callKindLabel(call.Kind),
		Target:      call.Target,
		OfferKind:   kindLabel(call.Offer.Info.Kind),
		OfferID:     call.Offer.Info.ID(),
		OfferAmount: call.Offer.Amount.String(),
		AskKind:     kindLabel(call.Ask.Kind),
		AskID:       call.Ask.ID(),
	}
}

func decodeEvents(resp eventsResponse) []types.Event {
	out := make([]types.Event, len(resp.Events))
	for i, evt := range resp.Events {
		out[i] = types.Event{Type: evt.Type, Attributes: evt.Attributes}
	}
	return out
}

// HTTPVenueClient talks to one venue adapter service. It satisfies both the
// execution-side VenueClient and the read side of quote.VenueQuerier.
type HTTPVenueClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPVenueClient builds a client for the venue service at endpoint.
func NewHTTPVenueClient(endpoint string) *HTTPVenueClient {
	return &HTTPVenueClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Swap performs the swap and returns the settlement events.
func (c *HTTPVenueClient) Swap(ctx context.Context, call router.Call) ([]types.Event, error) {
	var resp eventsResponse
	if err := c.post(ctx, "/swap", encodeCall(call), &resp); err != nil {
		return nil, err
	}
	return decodeEvents(resp), nil
}

// Simulate asks the venue for a pool-style quote.
func (c *HTTPVenueClient) Simulate(ctx context.Context, offer router.Asset, ask router.AssetInfo) (*big.Int, error) {
	return c.simulate(ctx, "/simulate", offer, ask)
}

// OutputQuantity asks the venue for a book-style quote.
func (c *HTTPVenueClient) OutputQuantity(ctx context.Context, offer router.Asset, ask router.AssetInfo) (*big.Int, error) {
	return c.simulate(ctx, "/output_quantity", offer, ask)
}

func (c *HTTPVenueClient) simulate(ctx context.Context, path string, offer router.Asset, ask router.AssetInfo) (*big.Int, error) {
	req := simulateRequest{
		OfferKind:   kindLabel(offer.Info.Kind),
		OfferID:     offer.Info.ID(),
		OfferAmount: offer.Amount.String(),
		AskKind:     kindLabel(ask.Kind),
		AskID:       ask.ID(),
	}
	var resp simulateResponse
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	output, ok := new(big.Int).SetString(resp.Output, 10)
	if !ok {
		return nil, fmt.Errorf("host: venue returned malformed output %q", resp.Output)
	}
	return output, nil
}

func (c *HTTPVenueClient) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("host: call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("host: call %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// HTTPAdapterClient talks to the wrap/unwrap adapter service.
type HTTPAdapterClient struct {
	venue *HTTPVenueClient
}

// NewHTTPAdapterClient builds a client for the adapter at endpoint.
func NewHTTPAdapterClient(endpoint string) *HTTPAdapterClient {
	return &HTTPAdapterClient{venue: NewHTTPVenueClient(endpoint)}
}

// Convert performs a wrap or unwrap and returns the settlement events.
func (c *HTTPAdapterClient) Convert(ctx context.Context, call router.Call) ([]types.Event, error) {
	var resp eventsResponse
	if err := c.venue.post(ctx, "/convert", encodeCall(call), &resp); err != nil {
		return nil, err
	}
	return decodeEvents(resp), nil
}

// HTTPBankClient performs plain transfers through the adapter service.
type HTTPBankClient struct {
	venue *HTTPVenueClient
}

// NewHTTPBankClient builds a transfer client for the service at endpoint.
func NewHTTPBankClient(endpoint string) *HTTPBankClient {
	return &HTTPBankClient{venue: NewHTTPVenueClient(endpoint)}
}

// Transfer moves an asset to the call's target.
func (c *HTTPBankClient) Transfer(ctx context.Context, call router.Call) error {
	var resp struct{}
	return c.venue.post(ctx, "/transfer", encodeCall(call), &resp)
}

// QuerierRegistry routes quote questions to per-venue HTTP clients. It
// satisfies quote.VenueQuerier.
type QuerierRegistry struct {
	clients map[string]*HTTPVenueClient
}

// NewQuerierRegistry builds an empty registry.
func NewQuerierRegistry() *QuerierRegistry {
	return &QuerierRegistry{clients: make(map[string]*HTTPVenueClient)}
}

// Register installs the client answering for venue.
func (r *QuerierRegistry) Register(venue string, client *HTTPVenueClient) {
	r.clients[venue] = client
}

// Simulate forwards a pool quote to the venue's client.
func (r *QuerierRegistry) Simulate(venue string, offer router.Asset, ask router.AssetInfo) (*big.Int, error) {
	client, ok := r.clients[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, venue)
	}
	return client.Simulate(context.Background(), offer, ask)
}

// OutputQuantity forwards a book quote to the venue's client.
func (r *QuerierRegistry) OutputQuantity(venue string, offer router.Asset, ask router.AssetInfo) (*big.Int, error) {
	client, ok := r.clients[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, venue)
	}
	return client.OutputQuantity(context.Background(), offer, ask)
}
