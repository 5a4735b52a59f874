package freteclick

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vitorrgg/app-freteclick/internal/ecom"
)

const defaultCountry = "Brasil"

// ErrUnexpectedResponse reports a 2xx answer missing the expected payload.
var ErrUnexpectedResponse = errors.New("freteclick: unexpected response payload")

// ID is an identifier echoed back to the API exactly as it was received,
// number or string.
type ID json.RawMessage

func (id ID) MarshalJSON() ([]byte, error) {
	if len(id) == 0 {
		return []byte("null"), nil
	}
	return id, nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*id = nil
		return nil
	}
	*id = append((*id)[:0], b...)
	return nil
}

// String returns the id without JSON quoting.
func (id ID) String() string {
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	return string(id)
}

// Identity is the account behind an API token.
type Identity struct {
	PeopleID  ID `json:"peopleId"`
	CompanyID ID `json:"companyId"`
}

// Address is the postal address shape of the people and purchasing APIs.
type Address struct {
	Country    string `json:"country"`
	State      string `json:"state"`
	City       string `json:"city"`
	District   string `json:"district"`
	Complement string `json:"complement"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	PostalCode string `json:"postal_code"`
}

// NewAddress maps a platform address.
func NewAddress(a ecom.Address) Address {
	country := a.Country
	if country == "" {
		country = defaultCountry
	}
	return Address{
		Country:    country,
		State:      a.ProvinceCode,
		City:       a.City,
		District:   a.Borough,
		Complement: a.Complement,
		Street:     a.Street,
		Number:     strconv.Itoa(a.Number),
		PostalCode: ecom.Digits(a.Zip),
	}
}

// CustomerRequest registers a buyer as a Frete Click customer.
type CustomerRequest struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Document string  `json:"document"`
	Email    string  `json:"email"`
	Address  Address `json:"address"`
}

// NewCustomerRequest maps an order buyer and its delivery address. Only
// buyers registered as individuals ("p") are sent as type F.
func NewCustomerRequest(b ecom.Buyer, to ecom.Address) CustomerRequest {
	kind := "J"
	if b.RegistryType == "p" {
		kind = "F"
	}
	return CustomerRequest{
		Name:     b.FullName(),
		Type:     kind,
		Document: b.DocNumber,
		Email:    b.MainEmail,
		Address:  NewAddress(to),
	}
}

type envelope struct {
	Response struct {
		Count *json.Number    `json:"count"`
		Data  json.RawMessage `json:"data"`
	} `json:"response"`
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var env envelope
	err := json.Unmarshal(raw, &env)
	return env, err
}

// hasData reports whether the envelope data is a non-empty JSON value.
func (e envelope) hasData() bool {
	d := bytes.TrimSpace(e.Response.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null")) && !bytes.Equal(d, []byte("false"))
}

// Me resolves the people and company ids of the token owner.
func (c *Client) Me(ctx context.Context, token string) (Identity, error) {
	status, raw, err := c.send(ctx, call{
		op: "me", method: http.MethodGet, path: "/people/me",
		tokenHeader: "api-token", token: token, timeout: c.timeout,
	})
	if err != nil {
		return Identity{}, err
	}
	if status != http.StatusOK {
		return Identity{}, &APIError{Operation: "me", Status: status, Body: raw}
	}
	env, err := decodeEnvelope(raw)
	if err != nil || !env.hasData() {
		return Identity{}, fmt.Errorf("freteclick me: %w", ErrUnexpectedResponse)
	}
	var id Identity
	if err := json.Unmarshal(env.Response.Data, &id); err != nil {
		return Identity{}, fmt.Errorf("freteclick me: %w", ErrUnexpectedResponse)
	}
	return id, nil
}

type customerData struct {
	ID ID `json:"id"`
}

// FindCustomer looks the customer up by e-mail. found is false when the
// account has no customer with that address.
func (c *Client) FindCustomer(ctx context.Context, token, email string) (id ID, found bool, err error) {
	status, raw, err := c.send(ctx, call{
		op: "find_customer", method: http.MethodGet, path: "/people/customer?email=" + url.QueryEscape(email),
		tokenHeader: "api-token", token: token, timeout: c.timeout,
	})
	if err != nil {
		return nil, false, err
	}
	if status != http.StatusOK {
		return nil, false, &APIError{Operation: "find_customer", Status: status, Body: raw}
	}
	env, err := decodeEnvelope(raw)
	if err != nil || !env.hasData() || env.Response.Count == nil {
		return nil, false, fmt.Errorf("freteclick find customer: %w", ErrUnexpectedResponse)
	}
	if n, _ := env.Response.Count.Float64(); n == 0 {
		return nil, false, nil
	}
	var data customerData
	if err := json.Unmarshal(env.Response.Data, &data); err != nil {
		return nil, false, fmt.Errorf("freteclick find customer: %w", ErrUnexpectedResponse)
	}
	return data.ID, true, nil
}

// CreateCustomer registers a customer and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, token string, req CustomerRequest) (ID, error) {
	status, raw, err := c.send(ctx, call{
		op: "create_customer", method: http.MethodPost, path: "/people/customer",
		tokenHeader: "api-token", token: token, body: req, timeout: c.timeout,
	})
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &APIError{Operation: "create_customer", Status: status, Body: raw}
	}
	env, err := decodeEnvelope(raw)
	if err != nil || !env.hasData() {
		return nil, fmt.Errorf("freteclick create customer: %w", ErrUnexpectedResponse)
	}
	var data customerData
	if err := json.Unmarshal(env.Response.Data, &data); err != nil {
		return nil, fmt.Errorf("freteclick create customer: %w", ErrUnexpectedResponse)
	}
	return data.ID, nil
}

// GetOrCreateCustomer returns the id of the customer registered under the
// buyer e-mail, creating it on first use.
func (c *Client) GetOrCreateCustomer(ctx context.Context, token string, buyer ecom.Buyer, to ecom.Address) (ID, error) {
	id, found, err := c.FindCustomer(ctx, token, buyer.MainEmail)
	if err != nil {
		return nil, err
	}
	if found {
		return id, nil
	}
	return c.CreateCustomer(ctx, token, NewCustomerRequest(buyer, to))
}
