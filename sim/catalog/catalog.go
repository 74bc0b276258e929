// Package catalog supplies vendor cost data for restock decisions. The live
// catalog lives in the shared store; when it cannot be read the provider
// degrades to a fixed default so a simulation turn never aborts on pricing.
package catalog

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/openvend/vendsim/sim/contract"
)

// Default is the fallback vendor catalog.
var Default = contractx.Catalog{
	"Classic Cola":       {Cost: 0.50, WholesalePrice: 0.50},
	"Potato Chips":       {Cost: 0.75, WholesalePrice: 0.75},
	"Chocolate Bar":      {Cost: 0.65, WholesalePrice: 0.65},
	"Diet Cola":          {Cost: 0.55, WholesalePrice: 0.55},
	"Pretzels":           {Cost: 0.70, WholesalePrice: 0.70},
	"Peanut Butter Cups": {Cost: 0.80, WholesalePrice: 0.80},
	"Bottled Water":      {Cost: 0.40, WholesalePrice: 0.40},
	"Energy Drink":       {Cost: 1.50, WholesalePrice: 1.50},
	"Gum":                {Cost: 0.25, WholesalePrice: 0.25},
}

type Provider struct {
	store contractx.CatalogStore
}

// NewProvider returns a catalog provider. A nil store always serves Default.
func NewProvider(store contractx.CatalogStore) *Provider {
	return &Provider{store: store}
}

// Vendor returns the live vendor catalog, or Default when the store is
// unreachable or returns nothing. It never fails.
func (p *Provider) Vendor(ctx context.Context) contractx.Catalog {
	if p == nil || p.store == nil {
		return Default
	}

	live, err := p.store.VendorCatalog(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("vendor catalog read failed, using default catalog")
		return Default
	}
	if len(live) == 0 {
		return Default
	}
	return live
}
