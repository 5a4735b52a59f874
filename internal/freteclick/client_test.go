package freteclick_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/freteclick"
	"github.com/vitorrgg/app-freteclick/internal/resilience"
	"github.com/vitorrgg/app-freteclick/internal/shipping"
)

func newServer(t *testing.T, h http.HandlerFunc) *freteclick.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return freteclick.NewClient(
		freteclick.WithBaseURL(srv.URL+"/"),
		freteclick.WithHTTPClient(resilience.NewHTTPClient("freteclick", 0, nil)),
	)
}

func TestQuoteSendsPayload(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/quotes", r.URL.Path)
		require.Equal(t, "merchant-token", r.Header.Get("token"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte(`[{"servico":"PAC","vlrFrete":21.5,"prazoEnt":"5","prazoRet":2,"transp_nome":"Correios","nf_obrig":"N","cnpjTransp":34028316000103,"quoteId":77,"orderId":"991"}]`))
	})

	quotes, err := client.Quote(context.Background(), shipping.QuoteRequest{
		OriginZip:      "01001000",
		DestinationZip: "50010000",
		Origin:         shipping.QuoteOrigin,
		Sort:           "preco",
		Packages:       []shipping.Package{{Weight: 1, Height: 5, Width: 10, Length: 10, Value: 20, Quantity: 1}},
		Token:          "merchant-token",
	})
	require.NoError(t, err)
	require.Equal(t, "01001000", got["cepOrigem"])
	require.Equal(t, "E-Com Plus", got["origem"])
	require.NotContains(t, got, "Token")
	require.Len(t, got["packages"], 1)

	require.Len(t, quotes, 1)
	q := quotes[0]
	require.Equal(t, 21.5, q.Price)
	require.Equal(t, "2", q.RetrievalDays.String())
	require.Equal(t, "34028316000103", q.CarrierDoc.String())
	require.Equal(t, "77", q.QuoteID.String())
	require.Equal(t, "991", q.OrderID.String())
}

func TestQuoteErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name: "html body", status: http.StatusOK, body: "<html>maintenance</html>",
			check: func(t *testing.T, err error) {
				var invalid *shipping.InvalidResponseError
				require.ErrorAs(t, err, &invalid)
				require.Equal(t, "<html>maintenance</html>", invalid.Body)
			},
		},
		{
			name: "object body", status: http.StatusOK, body: `{"response":{"success":false}}`,
			check: func(t *testing.T, err error) {
				var upstream *shipping.UpstreamError
				require.ErrorAs(t, err, &upstream)
				require.Equal(t, http.StatusOK, upstream.Status)
				_, ok := upstream.CarrierMessage()
				require.False(t, ok)
			},
		},
		{
			name: "carrier validation", status: http.StatusBadRequest, body: `{"data":"Informe o CEP"}`,
			check: func(t *testing.T, err error) {
				var upstream *shipping.UpstreamError
				require.ErrorAs(t, err, &upstream)
				msg, ok := upstream.CarrierMessage()
				require.True(t, ok)
				require.Equal(t, "Informe o CEP", msg)
			},
		},
		{
			name: "gateway error page", status: http.StatusBadGateway, body: "bad gateway",
			check: func(t *testing.T, err error) {
				var upstream *shipping.UpstreamError
				require.ErrorAs(t, err, &upstream)
				require.Equal(t, http.StatusBadGateway, upstream.Status)
			},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Quote(context.Background(), shipping.QuoteRequest{Token: "t"})
			tc.check(t, err)
		})
	}
}

func TestQuoteTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	client := freteclick.NewClient(freteclick.WithBaseURL(srv.URL), freteclick.WithQuoteTimeout(30*time.Millisecond))

	_, err := client.Quote(context.Background(), shipping.QuoteRequest{Token: "t"})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMe(t *testing.T) {
	t.Parallel()

	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/people/me", r.URL.Path)
		require.Equal(t, "tok", r.Header.Get("api-token"))
		_, _ = w.Write([]byte(`{"response":{"data":{"peopleId":12,"companyId":"c-9"}}}`))
	})

	id, err := client.Me(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "12", id.PeopleID.String())
	require.Equal(t, "c-9", id.CompanyID.String())

	raw, err := json.Marshal(id)
	require.NoError(t, err)
	require.JSONEq(t, `{"peopleId":12,"companyId":"c-9"}`, string(raw))
}

func TestMeUnexpected(t *testing.T) {
	t.Parallel()

	client := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"data":null}}`))
	})
	_, err := client.Me(context.Background(), "tok")
	require.ErrorIs(t, err, freteclick.ErrUnexpectedResponse)

	client = newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	})
	_, err = client.Me(context.Background(), "tok")
	var apiErr *freteclick.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestGetOrCreateCustomer(t *testing.T) {
	t.Parallel()

	buyer := ecom.Buyer{
		MainEmail:    "ana+shop@example.com",
		Name:         &ecom.Name{GivenName: "Ana", FamilyName: "Souza"},
		DocNumber:    "12345678909",
		RegistryType: "p",
	}
	to := ecom.Address{Zip: "50010-000", Street: "Rua do Sol", Number: 12, Borough: "Centro", City: "Recife", ProvinceCode: "PE"}

	t.Run("existing", func(t *testing.T) {
		t.Parallel()
		client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "ana+shop@example.com", r.URL.Query().Get("email"))
			_, _ = w.Write([]byte(`{"response":{"count":1,"data":{"id":501}}}`))
		})
		id, err := client.GetOrCreateCustomer(context.Background(), "tok", buyer, to)
		require.NoError(t, err)
		require.Equal(t, "501", id.String())
	})

	t.Run("created", func(t *testing.T) {
		t.Parallel()
		var created freteclick.CustomerRequest
		client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(`{"response":{"count":0,"data":[]}}`))
				return
			}
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/people/customer", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"response":{"data":{"id":"cust-7"}}}`))
		})
		id, err := client.GetOrCreateCustomer(context.Background(), "tok", buyer, to)
		require.NoError(t, err)
		require.Equal(t, "cust-7", id.String())
		require.Equal(t, freteclick.CustomerRequest{
			Name:     "Ana Souza",
			Type:     "F",
			Document: "12345678909",
			Email:    "ana+shop@example.com",
			Address: freteclick.Address{
				Country: "Brasil", State: "PE", City: "Recife", District: "Centro",
				Street: "Rua do Sol", Number: "12", PostalCode: "50010000",
			},
		}, created)
	})
}

func TestChooseQuote(t *testing.T) {
	t.Parallel()

	var body map[string]any
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/purchasing/orders/991/choose-quote", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":"TAG-1","status":"created"}`))
	})

	freight := 21.5
	tag, err := client.ChooseQuote(context.Background(), "tok", "991", freteclick.ChooseQuoteRequest{
		Quote: "77",
		Price: &freight,
		Payer: freteclick.ID(`3`),
		Retrieve: freteclick.Party{
			ID:      freteclick.ID(`3`),
			Address: freteclick.PartyAddress{Address: freteclick.NewAddress(ecom.Address{Zip: "01001-000"})},
			Contact: freteclick.ID(`12`),
		},
	})
	require.NoError(t, err)
	require.Equal(t, "TAG-1", tag.ID)
	require.Equal(t, "77", body["quote"])
	retrieve := body["retrieve"].(map[string]any)
	address := retrieve["address"].(map[string]any)
	require.Nil(t, address["id"])
	require.Equal(t, "01001000", address["postal_code"])
	require.Equal(t, "0", address["number"])
	require.Equal(t, "Brasil", address["country"])
	require.Nil(t, body["delivery"].(map[string]any)["id"])
}

func TestChooseQuoteNestedID(t *testing.T) {
	t.Parallel()

	client := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"data":{"id":4410}}}`))
	})
	tag, err := client.ChooseQuote(context.Background(), "tok", "1", freteclick.ChooseQuoteRequest{})
	require.NoError(t, err)
	require.Equal(t, "4410", tag.ID)

	client = newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"quote expired"}`))
	})
	_, err = client.ChooseQuote(context.Background(), "tok", "1", freteclick.ChooseQuoteRequest{})
	require.ErrorContains(t, err, "quote expired")
}
