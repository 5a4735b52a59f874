package postal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/resilience"
)

const (
	defaultViaCEPURL = "https://viacep.com.br/ws"
	readLimit        = 64 << 10
)

// ErrNotFound reports a zip code unknown to the lookup service.
var ErrNotFound = errors.New("postal: zip code not found")

// Place is the address data known for a zip code.
type Place struct {
	Zip          string `json:"zip"`
	Street       string `json:"street,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Borough      string `json:"borough,omitempty"`
	City         string `json:"city,omitempty"`
	ProvinceCode string `json:"province_code,omitempty"`
}

// Lookup resolves an 8 digit zip code.
type Lookup interface {
	Lookup(ctx context.Context, zip string) (Place, error)
}

// Doer sends a request under ctx. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ViaCEP queries the public ViaCEP service.
type ViaCEP struct {
	BaseURL string
	Client  Doer
}

// NewViaCEP builds a client; an empty baseURL selects the public endpoint.
func NewViaCEP(baseURL string, client Doer) *ViaCEP {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultViaCEPURL
	}
	return &ViaCEP{BaseURL: baseURL, Client: client}
}

type viaCEPBody struct {
	CEP         string          `json:"cep"`
	Logradouro  string          `json:"logradouro"`
	Complemento string          `json:"complemento"`
	Bairro      string          `json:"bairro"`
	Localidade  string          `json:"localidade"`
	UF          string          `json:"uf"`
	Erro        ecom.FlexString `json:"erro"`
}

func (v *ViaCEP) Lookup(ctx context.Context, zip string) (Place, error) {
	if v == nil || v.Client == nil {
		return Place{}, errors.New("postal: viacep client not configured")
	}
	ctx = resilience.WithOperation(ctx, "lookup")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json/", v.BaseURL, zip), nil)
	if err != nil {
		return Place{}, fmt.Errorf("postal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.Client.Do(ctx, req)
	if err != nil {
		return Place{}, fmt.Errorf("postal: lookup %s: %w", zip, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return Place{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("postal: lookup %s: status %d", zip, resp.StatusCode)
	}

	var body viaCEPBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, readLimit)).Decode(&body); err != nil {
		return Place{}, fmt.Errorf("postal: decode response: %w", err)
	}
	if body.Erro != "" && body.Erro != "false" {
		return Place{}, ErrNotFound
	}
	return Place{
		Zip:          zip,
		Street:       body.Logradouro,
		Complement:   body.Complemento,
		Borough:      body.Bairro,
		City:         body.Localidade,
		ProvinceCode: body.UF,
	}, nil
}
