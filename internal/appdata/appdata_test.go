package appdata_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vitorrgg/app-freteclick/internal/appdata"
	"github.com/vitorrgg/app-freteclick/internal/ecom"
)

func TestMergeHiddenDataWins(t *testing.T) {
	t.Parallel()

	cfg, err := appdata.Merge(ecom.Application{
		Data:       json.RawMessage(`{"api_key":"public","zip":"01001-000","ordernar":"prazo"}`),
		HiddenData: json.RawMessage(`{"api_key":"secret"}`),
	})
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.APIKey)
	require.Equal(t, "prazo", cfg.Ordernar)
	require.Equal(t, "01001000", cfg.OriginZip(nil))
	require.Equal(t, "22222000", cfg.OriginZip(&ecom.Address{Zip: "22222-000"}))
}

func TestMergeToleratesMalformedRules(t *testing.T) {
	t.Parallel()

	cfg, err := appdata.Merge(ecom.Application{Data: json.RawMessage(`{
		"api_key": "k",
		"additional_price": "oops",
		"shipping_rules": [
			null,
			"broken",
			{"service_name":"PAC","zip_range":{"min":1000000,"max":"09999-999"},"discount":{"value":5}},
			{"service_name":"SEDEX","min_amount":"abc"}
		],
		"free_shipping_rules": {"not":"a list"}
	}`)})
	require.NoError(t, err)
	require.Equal(t, "k", cfg.APIKey)
	require.Zero(t, cfg.AdditionalPrice)
	require.Empty(t, cfg.FreeShippingRules)
	require.Len(t, cfg.ShippingRules, 4)
	require.Nil(t, cfg.ShippingRules[0])
	require.Nil(t, cfg.ShippingRules[1])

	pac := cfg.ShippingRules[2]
	require.NotNil(t, pac)
	require.Equal(t, "PAC", pac.ServiceName)
	require.Equal(t, appdata.Zip("1000000"), pac.ZipRange.Min)
	require.Equal(t, appdata.Zip("09999999"), pac.ZipRange.Max)
	require.InDelta(t, 5, *pac.Discount.Value, 1e-9)

	sedex := cfg.ShippingRules[3]
	require.NotNil(t, sedex)
	require.Nil(t, sedex.MinAmount)
}

func TestMergeRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := appdata.Merge(ecom.Application{Data: json.RawMessage(`{"api_key":`)})
	require.Error(t, err)

	cfg, err := appdata.Merge(ecom.Application{})
	require.NoError(t, err)
	require.Empty(t, cfg.APIKey)
}

func TestFlagTruthiness(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		`true`: true, `false`: false, `"paid"`: true, `""`: false, `1`: true, `0`: false, `null`: false, `{}`: true,
	} {
		var f appdata.Flag
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		require.Equal(t, want, bool(f), in)
	}
}

func TestTokenForWarehouse(t *testing.T) {
	t.Parallel()

	cfg, err := appdata.Merge(ecom.Application{Data: json.RawMessage(`{
		"api_key":"main",
		"warehouses":[{"code":"rj","api_key":"rio"},{"code":"sp"}],
		"ignore_triggers":["products"]
	}`)})
	require.NoError(t, err)
	require.Equal(t, "rio", cfg.TokenFor("rj"))
	require.Equal(t, "main", cfg.TokenFor("sp"))
	require.Equal(t, "main", cfg.TokenFor(""))
	require.True(t, cfg.IgnoresTrigger("products"))
	require.False(t, cfg.IgnoresTrigger("orders"))
}
