// Package storeapi calls the E-Com Plus Store API on behalf of one store.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/resilience"
)

const (
	defaultBaseURL = "https://api.e-com.plus/v1"
	readLimit      = 4 << 20
)

// ErrNoAuth reports that the app holds no credentials for the store.
var ErrNoAuth = errors.New("storeapi: no authentication found for store")

// Credentials authenticate calls for one store.
type Credentials struct {
	AuthID      string
	AccessToken string
}

// Authenticator returns the credentials the app holds for storeID.
type Authenticator interface {
	Credentials(ctx context.Context, storeID string) (Credentials, error)
}

// StaticAuth serves one credential pair. When StoreID is set the pair only
// authenticates that store. Empty credentials yield ErrNoAuth.
type StaticAuth struct {
	StoreID     string
	AuthID      string
	AccessToken string
}

func (a StaticAuth) Credentials(_ context.Context, storeID string) (Credentials, error) {
	if a.AuthID == "" || a.AccessToken == "" {
		return Credentials{}, ErrNoAuth
	}
	if a.StoreID != "" && a.StoreID != storeID {
		return Credentials{}, ErrNoAuth
	}
	return Credentials{AuthID: a.AuthID, AccessToken: a.AccessToken}, nil
}

// Doer sends a request under ctx. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// APIError reports a non-2xx Store API response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store api %s %s: status %d", e.Method, e.Path, e.Status)
}

// Client reads and updates store resources.
type Client struct {
	BaseURL string
	AppID   string
	Auth    Authenticator
	HTTP    Doer
}

// NewClient builds a Store API client for the given app.
func NewClient(baseURL, appID string, auth Authenticator, doer Doer) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{BaseURL: baseURL, AppID: appID, Auth: auth, HTTP: doer}
}

func (c *Client) request(ctx context.Context, storeID, op, method, path string, body, dest any) error {
	if c.Auth == nil {
		return ErrNoAuth
	}
	creds, err := c.Auth.Credentials(ctx, storeID)
	if err != nil {
		return err
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("store api %s: encode: %w", op, err)
		}
		payload = bytes.NewReader(raw)
	}
	ctx = resilience.WithOperation(ctx, op)
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return fmt.Errorf("store api %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Store-ID", storeID)
	req.Header.Set("X-My-ID", creds.AuthID)
	req.Header.Set("X-Access-Token", creds.AccessToken)

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("store api %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, readLimit))
	if err != nil {
		return fmt.Errorf("store api %s: read response: %w", op, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: raw}
	}
	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("store api %s: decode response: %w", op, err)
	}
	return nil
}

// AppData loads the application installed on the store.
func (c *Client) AppData(ctx context.Context, storeID string) (ecom.Application, error) {
	path := "/applications.json?app_id=" + url.QueryEscape(c.AppID) + "&fields=_id,data,hidden_data"
	var list struct {
		Result []ecom.Application `json:"result"`
	}
	if err := c.request(ctx, storeID, "app_data", http.MethodGet, path, nil, &list); err != nil {
		return ecom.Application{}, err
	}
	if len(list.Result) == 0 {
		return ecom.Application{}, fmt.Errorf("store api app_data: application %s not installed", c.AppID)
	}
	return list.Result[0], nil
}

// Order fetches the full order document.
func (c *Client) Order(ctx context.Context, storeID, orderID string) (ecom.Order, error) {
	var order ecom.Order
	path := "/orders/" + url.PathEscape(orderID) + ".json"
	err := c.request(ctx, storeID, "order", http.MethodGet, path, nil, &order)
	return order, err
}

// PatchShippingLine updates fields of one order shipping line.
func (c *Client) PatchShippingLine(ctx context.Context, storeID, orderID, lineID string, patch any) error {
	path := "/orders/" + url.PathEscape(orderID) + "/shipping_lines/" + url.PathEscape(lineID) + ".json"
	return c.request(ctx, storeID, "patch_shipping_line", http.MethodPatch, path, patch, nil)
}

// Metafield is a namespaced value attached to an order.
type Metafield struct {
	Namespace string `json:"namespace"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}

// AddMetafield appends a metafield to the order.
func (c *Client) AddMetafield(ctx context.Context, storeID, orderID string, m Metafield) error {
	path := "/orders/" + url.PathEscape(orderID) + "/metafields.json"
	return c.request(ctx, storeID, "add_metafield", http.MethodPost, path, m, nil)
}
