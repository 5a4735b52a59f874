package freteclick

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/vitorrgg/app-freteclick/internal/shipping"
)

// Quote requests freight quotes for the packages in req. A body that is not
// JSON yields *shipping.InvalidResponseError; any other status than 200 or a
// payload that is not a quote list yields *shipping.UpstreamError.
func (c *Client) Quote(ctx context.Context, req shipping.QuoteRequest) ([]shipping.Quote, error) {
	status, raw, err := c.send(ctx, call{
		op:          "quote",
		method:      http.MethodPost,
		path:        "/quotes",
		tokenHeader: "token",
		token:       req.Token,
		body:        req,
		timeout:     c.quoteTimeout,
	})
	if err != nil {
		return nil, err
	}

	if ok(status) && !json.Valid(raw) {
		return nil, &shipping.InvalidResponseError{Body: string(raw)}
	}
	trimmed := bytes.TrimSpace(raw)
	if status != http.StatusOK || len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &shipping.UpstreamError{Status: status, Body: raw}
	}

	var quotes []shipping.Quote
	if err := json.Unmarshal(trimmed, &quotes); err != nil {
		return nil, &shipping.UpstreamError{Status: status, Body: raw}
	}
	return quotes, nil
}
