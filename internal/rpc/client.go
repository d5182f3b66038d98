package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pokercore/internal/rpcerr"
)

// Client is the Gateway's HTTP+JSON handle onto a Game or Event service
// instance. One Client per upstream base URL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func call[Req any, Resp any](ctx context.Context, c *Client, method string, req Req) (Resp, error) {
	var zero Resp
	body, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("rpc client: marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/rpc/"+method, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("rpc client: build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return zero, rpcerr.Unavailable("rpc client: %s: %v", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var wireErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&wireErr)
		return zero, fmt.Errorf("%s: %s", wireErr.Code, wireErr.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(&zero); err != nil {
		return zero, fmt.Errorf("rpc client: decode %s response: %w", method, err)
	}
	return zero, nil
}

func (c *Client) SubmitAction(ctx context.Context, req SubmitActionRequest) (SubmitActionResponse, error) {
	return call[SubmitActionRequest, SubmitActionResponse](ctx, c, "SubmitAction", req)
}

func (c *Client) GetTableSnapshot(ctx context.Context, req GetTableSnapshotRequest) (any, error) {
	return call[GetTableSnapshotRequest, any](ctx, c, "GetTableSnapshot", req)
}

func (c *Client) GetHandSnapshot(ctx context.Context, req GetHandSnapshotRequest) (any, error) {
	return call[GetHandSnapshotRequest, any](ctx, c, "GetHandSnapshot", req)
}

func (c *Client) CreateTable(ctx context.Context, req CreateTableRequest) (CreateTableResponse, error) {
	return call[CreateTableRequest, CreateTableResponse](ctx, c, "CreateTable", req)
}

func (c *Client) JoinTable(ctx context.Context, req JoinTableRequest) error {
	_, err := call[JoinTableRequest, struct{}](ctx, c, "JoinTable", req)
	return err
}

func (c *Client) LeaveTable(ctx context.Context, req LeaveTableRequest) error {
	_, err := call[LeaveTableRequest, struct{}](ctx, c, "LeaveTable", req)
	return err
}

func (c *Client) SetReady(ctx context.Context, req SetReadyRequest) error {
	_, err := call[SetReadyRequest, struct{}](ctx, c, "SetReady", req)
	return err
}

func (c *Client) ListOwnedTables(ctx context.Context, req ListOwnedTablesRequest) ([]any, error) {
	return call[ListOwnedTablesRequest, []any](ctx, c, "ListOwnedTables", req)
}

func (c *Client) GetHoleCards(ctx context.Context, req GetHoleCardsRequest) (GetHoleCardsResponse, error) {
	return call[GetHoleCardsRequest, GetHoleCardsResponse](ctx, c, "GetHoleCards", req)
}

var _ GameService = (*Client)(nil)
var _ EventService = (*Client)(nil)
