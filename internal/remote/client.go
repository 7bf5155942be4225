package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"route-recon/internal/models"
)

// NetworkError is a transport failure or a non-2xx answer. StatusCode is 0
// when no response arrived.
type NetworkError struct {
	Action     string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP error! status: %d", e.Action, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is an answer with status "error". Data carries whatever the
// server attached, e.g. the holder of a denied lock.
type RemoteError struct {
	Action  string
	Message string
	Data    json.RawMessage
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Action + ": request failed"
	}
	return e.Action + ": " + e.Message
}

// Client talks to the exec endpoint. It never retries; callers own retry policy.
type Client struct {
	url  string
	http *http.Client
}

func New(url string, timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
	}
	return &Client{url: url, http: &http.Client{Transport: transport, Timeout: timeout}}
}

// Call posts payload with the action field merged in and returns the
// success envelope.
func (c *Client) Call(ctx context.Context, action string, payload interface{}) (*models.RawEnvelope, error) {
	body, err := requestBody(action, payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Action: action, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Action: action, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Action: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", bytes.TrimSpace(data))}
	}

	var env models.RawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &NetworkError{Action: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.Status != models.StatusSuccess {
		return nil, &RemoteError{Action: action, Message: env.Message, Data: env.Data}
	}
	return &env, nil
}

func requestBody(action string, payload interface{}) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", action, err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%s payload must be a JSON object: %w", action, err)
		}
	}
	name, _ := json.Marshal(action)
	fields["action"] = name
	return json.Marshal(fields)
}

// do runs Call and decodes the data field into T.
func do[T any](ctx context.Context, c *Client, action string, payload interface{}) (T, error) {
	var out T
	env, err := c.Call(ctx, action, payload)
	if err != nil {
		return out, err
	}
	if len(env.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s data: %w", action, err)
	}
	return out, nil
}

func (c *Client) Heartbeat(ctx context.Context, req models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	return do[*models.HeartbeatResponse](ctx, c, models.ActionHeartbeat, req)
}

func (c *Client) GetActiveUsers(ctx context.Context) (*models.ActiveUsersResponse, error) {
	return do[*models.ActiveUsersResponse](ctx, c, models.ActionGetActiveUsers, nil)
}

func (c *Client) GetRealTimeData(ctx context.Context, req models.RealTimeRequest) (*models.RealTimeData, error) {
	return do[*models.RealTimeData](ctx, c, models.ActionGetRealTimeData, req)
}

// LockItem returns a response with Success false, and no error, when the
// item is held by someone else.
func (c *Client) LockItem(ctx context.Context, req models.LockRequest) (*models.LockResponse, error) {
	resp, err := do[*models.LockResponse](ctx, c, models.ActionLockItem, req)
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && len(remoteErr.Data) > 0 {
		var denied models.LockResponse
		if json.Unmarshal(remoteErr.Data, &denied) == nil && denied.HeldBy != nil {
			return &denied, nil
		}
	}
	return resp, err
}

func (c *Client) UnlockItem(ctx context.Context, req models.LockRequest) error {
	_, err := c.Call(ctx, models.ActionUnlockItem, req)
	return err
}

func (c *Client) SaveInventoryData(ctx context.Context, req *models.SaveInventoryRequest) (*models.SaveResult, error) {
	return do[*models.SaveResult](ctx, c, models.ActionSaveInventory, req)
}

func (c *Client) SaveCashReconciliation(ctx context.Context, rec *models.CashRecord) (*models.SaveResult, error) {
	return do[*models.SaveResult](ctx, c, models.ActionSaveCash, rec)
}

func (c *Client) GetInventoryData(ctx context.Context, route, date string) (*models.InventoryRecord, error) {
	return do[*models.InventoryRecord](ctx, c, models.ActionGetInventory, models.RecordQuery{Route: route, Date: date})
}

// GetCashReconciliationData returns nil when nothing was saved for the day.
func (c *Client) GetCashReconciliationData(ctx context.Context, route, date string) (*models.CashRecord, error) {
	return do[*models.CashRecord](ctx, c, models.ActionGetCash, models.RecordQuery{Route: route, Date: date})
}

func (c *Client) CalculateSalesFromInventory(ctx context.Context, req models.SalesRequest) ([]models.SalesQuantity, error) {
	return do[[]models.SalesQuantity](ctx, c, models.ActionCalculateSales, req)
}
