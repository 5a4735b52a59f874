// Package postal completes platform addresses from their zip code, with a
// Redis cache in front of the lookup service.
package postal

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/obs"
)

// Lookup sources recorded in metrics.
const (
	SourceCache    = "cache"
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

const zipLength = 8

// Resolver implements shipping.AddressResolver. Fields already present on
// the address are never overwritten.
type Resolver struct {
	Lookup             Lookup
	Cache              *Cache
	DefaultCountryCode string
}

// Resolve returns addr completed with the place known for its zip code, or
// addr unchanged (country code aside) when nothing is known.
func (r *Resolver) Resolve(ctx context.Context, addr ecom.Address) ecom.Address {
	if addr.CountryCode == "" {
		addr.CountryCode = r.DefaultCountryCode
	}
	zip := addr.DigitsZip()
	if len(zip) != zipLength {
		obs.IncPostalLookup(SourceFallback)
		return addr
	}
	logger := zerolog.Ctx(ctx)

	place, hit, err := r.Cache.Get(ctx, zip)
	if err != nil {
		logger.Warn().Err(err).Str("zip", zip).Msg("postal cache read failed")
	}
	if hit {
		obs.IncPostalLookup(SourceCache)
		return fill(addr, place)
	}

	if r.Lookup == nil {
		obs.IncPostalLookup(SourceFallback)
		return addr
	}
	place, err = r.Lookup.Lookup(ctx, zip)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn().Err(err).Str("zip", zip).Msg("postal lookup failed")
		}
		obs.IncPostalLookup(SourceFallback)
		return addr
	}
	if err := r.Cache.Set(ctx, place); err != nil {
		logger.Warn().Err(err).Str("zip", zip).Msg("postal cache write failed")
	}
	obs.IncPostalLookup(SourceRemote)
	return fill(addr, place)
}

func fill(addr ecom.Address, p Place) ecom.Address {
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&addr.Street, p.Street)
	set(&addr.Complement, p.Complement)
	set(&addr.Borough, p.Borough)
	set(&addr.City, p.City)
	set(&addr.ProvinceCode, p.ProvinceCode)
	return addr
}
