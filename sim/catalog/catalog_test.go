package catalog

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/openvend/vendsim/sim/contract"
)

type fakeCatalogStore struct {
	catalog contractx.Catalog
	err     error
}

func (f *fakeCatalogStore) VendorCatalog(ctx context.Context) (contractx.Catalog, error) {
	return f.catalog, f.err
}

func TestVendorServesLiveCatalog(t *testing.T) {
	t.Parallel()

	live := contractx.Catalog{"Seltzer": {Cost: 0.9}}
	p := NewProvider(&fakeCatalogStore{catalog: live})

	got := p.Vendor(context.Background())
	if len(got) != 1 {
		t.Fatalf("catalog size = %d, want 1", len(got))
	}
	if got["Seltzer"].Cost != 0.9 {
		t.Fatalf("Seltzer cost = %v, want 0.9", got["Seltzer"].Cost)
	}
}

func TestVendorFallsBackOnError(t *testing.T) {
	t.Parallel()

	p := NewProvider(&fakeCatalogStore{err: errors.New("connection refused")})

	got := p.Vendor(context.Background())
	if len(got) != len(Default) {
		t.Fatalf("catalog size = %d, want default size %d", len(got), len(Default))
	}
	if got["Gum"].Cost != 0.25 {
		t.Fatalf("Gum cost = %v, want default 0.25", got["Gum"].Cost)
	}
}

func TestVendorFallsBackOnEmptyCatalog(t *testing.T) {
	t.Parallel()

	p := NewProvider(&fakeCatalogStore{catalog: contractx.Catalog{}})

	got := p.Vendor(context.Background())
	if len(got) != len(Default) {
		t.Fatalf("catalog size = %d, want default size %d", len(got), len(Default))
	}
}

func TestVendorNilStore(t *testing.T) {
	t.Parallel()

	p := NewProvider(nil)
	if got := p.Vendor(context.Background()); len(got) != len(Default) {
		t.Fatalf("catalog size = %d, want default size %d", len(got), len(Default))
	}
}
