package freteclick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// PartyAddress is an Address sent without a registered address id.
type PartyAddress struct {
	ID ID `json:"id"`
	Address
}

// Party is the sender or the recipient of a purchase.
type Party struct {
	ID      ID           `json:"id"`
	Address PartyAddress `json:"address"`
	Contact ID           `json:"contact"`
}

// ChooseQuoteRequest confirms a previously quoted freight.
type ChooseQuoteRequest struct {
	Quote    string   `json:"quote"`
	Price    *float64 `json:"price"`
	Payer    ID       `json:"payer"`
	Retrieve Party    `json:"retrieve"`
	Delivery Party    `json:"delivery"`
}

// Tag is the purchase created by ChooseQuote.
type Tag struct {
	ID  string
	Raw json.RawMessage
}

// ChooseQuote buys the quote attached to the carrier order orderID.
func (c *Client) ChooseQuote(ctx context.Context, token, orderID string, req ChooseQuoteRequest) (Tag, error) {
	status, raw, err := c.send(ctx, call{
		op:          "choose_quote",
		method:      http.MethodPut,
		path:        "/purchasing/orders/" + url.PathEscape(orderID) + "/choose-quote",
		tokenHeader: "api-token",
		token:       token,
		body:        req,
		timeout:     c.timeout,
	})
	if err != nil {
		return Tag{}, err
	}
	if !ok(status) {
		return Tag{}, &APIError{Operation: "choose_quote", Status: status, Body: raw}
	}

	var body struct {
		ID       ID `json:"id"`
		Response struct {
			Data struct {
				ID ID `json:"id"`
			} `json:"data"`
		} `json:"response"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Tag{}, fmt.Errorf("freteclick choose quote: %w", ErrUnexpectedResponse)
	}
	id := body.ID
	if len(id) == 0 {
		id = body.Response.Data.ID
	}
	if len(id) == 0 {
		return Tag{}, fmt.Errorf("freteclick choose quote: %w", ErrUnexpectedResponse)
	}
	return Tag{ID: id.String(), Raw: raw}, nil
}
