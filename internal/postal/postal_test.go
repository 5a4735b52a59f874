package postal_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/postal"
	"github.com/vitorrgg/app-freteclick/internal/resilience"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func viaCEPServer(t *testing.T, hits *atomic.Int32) *postal.ViaCEP {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ws/01001000/json/":
			_, _ = w.Write([]byte(`{"cep":"01001-000","logradouro":"Praça da Sé","complemento":"lado ímpar","bairro":"Sé","localidade":"São Paulo","uf":"SP"}`))
		case "/ws/99999999/json/":
			_, _ = w.Write([]byte(`{"erro":"true"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return postal.NewViaCEP(srv.URL+"/ws/", resilience.NewHTTPClient("viacep", time.Second, nil))
}

func TestViaCEPLookup(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	lookup := viaCEPServer(t, &hits)

	place, err := lookup.Lookup(context.Background(), "01001000")
	require.NoError(t, err)
	require.Equal(t, postal.Place{
		Zip: "01001000", Street: "Praça da Sé", Complement: "lado ímpar",
		Borough: "Sé", City: "São Paulo", ProvinceCode: "SP",
	}, place)

	_, err = lookup.Lookup(context.Background(), "99999999")
	require.ErrorIs(t, err, postal.ErrNotFound)

	_, err = lookup.Lookup(context.Background(), "12345678")
	require.Error(t, err)
	require.False(t, errors.Is(err, postal.ErrNotFound))
}

func TestResolverCachesRemoteResults(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	var hits atomic.Int32
	resolver := &postal.Resolver{
		Lookup:             viaCEPServer(t, &hits),
		Cache:              postal.NewCache(client, time.Hour),
		DefaultCountryCode: "BR",
	}

	addr := resolver.Resolve(context.Background(), ecom.Address{Zip: "01001-000", Number: 100, Street: "Custom street"})
	require.Equal(t, ecom.Address{
		Zip: "01001-000", Number: 100, Street: "Custom street", Complement: "lado ímpar",
		Borough: "Sé", City: "São Paulo", ProvinceCode: "SP", CountryCode: "BR",
	}, addr)
	require.EqualValues(t, 1, hits.Load())
	require.True(t, mr.Exists("postal:01001000"))
	require.Equal(t, time.Hour, mr.TTL("postal:01001000"))

	again := resolver.Resolve(context.Background(), ecom.Address{Zip: "01001000"})
	require.Equal(t, "São Paulo", again.City)
	require.EqualValues(t, 1, hits.Load(), "second resolution is served from cache")
}

func TestResolverFallback(t *testing.T) {
	t.Parallel()

	_, client := newRedis(t)
	var hits atomic.Int32
	resolver := &postal.Resolver{Lookup: viaCEPServer(t, &hits), Cache: postal.NewCache(client, time.Hour)}

	in := ecom.Address{Zip: "99999-999", City: "Nowhere"}
	require.Equal(t, in, resolver.Resolve(context.Background(), in))

	short := ecom.Address{Zip: "123"}
	require.Equal(t, short, resolver.Resolve(context.Background(), short))
	require.EqualValues(t, 1, hits.Load(), "short zip codes are not looked up")
}

func TestResolverWithoutRedis(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	mr.Close()

	var hits atomic.Int32
	resolver := &postal.Resolver{Lookup: viaCEPServer(t, &hits), Cache: postal.NewCache(client, time.Hour)}
	addr := resolver.Resolve(context.Background(), ecom.Address{Zip: "01001000"})
	require.Equal(t, "SP", addr.ProvinceCode)

	var nilCache *postal.Cache
	_, ok, err := nilCache.Get(context.Background(), "01001000")
	require.NoError(t, err)
	require.False(t, ok)
}
