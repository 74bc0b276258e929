// Package executor validates structured actions against shared economic
// state and applies them. Sale and restock bookkeeping go through the
// store's atomic ApplySale/ApplyRestock operations so an inventory change is
// never separated from its balance and log counterparts.
package executor

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"

	catalogx "github.com/openvend/vendsim/sim/catalog"
	contractx "github.com/openvend/vendsim/sim/contract"
)

// purchaseProbability is the per-item Bernoulli chance that a simulated
// customer buys one unit during a tick.
const purchaseProbability = 0.10

type Executor struct {
	inventory contractx.InventoryStore
	ledger    contractx.LedgerStore
	catalog   *catalogx.Provider

	// chance is the random source for the purchase tick, injectable in tests.
	chance func() float64
}

func New(inventory contractx.InventoryStore, ledger contractx.LedgerStore, catalog *catalogx.Provider) *Executor {
	return &Executor{
		inventory: inventory,
		ledger:    ledger,
		catalog:   catalog,
		chance:    rand.Float64,
	}
}

// WithChance overrides the random source. Test hook.
func (e *Executor) WithChance(chance func() float64) *Executor {
	if chance != nil {
		e.chance = chance
	}
	return e
}

// Execute applies one parsed action. An item missing from the vendor catalog
// on BUY is a defined no-op, not an error. DO_NOTHING and UNKNOWN leave all
// state untouched.
func (e *Executor) Execute(ctx context.Context, action contractx.Action) error {
	switch action.Type {
	case contractx.ActionBuy:
		return e.executeBuy(ctx, action)
	case contractx.ActionUpdatePrice:
		if err := e.inventory.UpdateItemPrice(ctx, action.ItemName, action.Price); err != nil {
			return fmt.Errorf("update price for %s: %w", action.ItemName, err)
		}
		return nil
	case contractx.ActionOfferDiscount:
		d := contractx.Discount{ProductName: action.ItemName, DiscountPct: action.DiscountPct}
		if err := e.ledger.UpsertDiscount(ctx, d); err != nil {
			return fmt.Errorf("register discount for %s: %w", action.ItemName, err)
		}
		return nil
	case contractx.ActionDoNothing:
		return nil
	case contractx.ActionUnknown:
		log.Debug().Str("raw_text", action.RawText).Msg("unrecognized operator response, skipping")
		return nil
	default:
		return nil
	}
}

func (e *Executor) executeBuy(ctx context.Context, action contractx.Action) error {
	entry, ok := e.catalog.Vendor(ctx)[action.ItemName]
	if !ok || entry.Cost <= 0 {
		log.Warn().Str("item", action.ItemName).Msg("buy skipped: item not in vendor catalog")
		return nil
	}

	totalCost := entry.Cost * float64(action.Quantity)
	if err := e.ledger.ApplyRestock(ctx, action.ItemName, action.Quantity, totalCost); err != nil {
		return fmt.Errorf("apply restock for %s: %w", action.ItemName, err)
	}
	return nil
}

// SimulateCustomerPurchases runs one probabilistic purchase tick: each
// in-stock item independently sells one unit with probability 0.10, charged
// at the retail price less any active discount, rounded to cents.
func (e *Executor) SimulateCustomerPurchases(ctx context.Context) ([]contractx.Sale, error) {
	items, err := e.inventory.Inventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("read inventory for purchase tick: %w", err)
	}

	var sales []contractx.Sale
	for _, item := range items {
		if e.chance() >= purchaseProbability {
			continue
		}
		if item.QuantityInStock <= 0 {
			continue
		}

		price, err := e.chargedPrice(ctx, item)
		if err != nil {
			return sales, err
		}
		if err := e.ledger.ApplySale(ctx, item.ProductName, 1, price, contractx.AgentCustomer); err != nil {
			return sales, fmt.Errorf("apply sale for %s: %w", item.ProductName, err)
		}
		sales = append(sales, contractx.Sale{ProductName: item.ProductName, Price: price})
	}
	return sales, nil
}

// PurchaseItem applies one human-initiated purchase: the HTTP surface calls
// this after a real customer picks an item. Unknown items and empty slots are
// caller-facing validation failures, not silent no-ops.
func (e *Executor) PurchaseItem(ctx context.Context, productName string) (contractx.Sale, error) {
	item, err := e.inventory.ItemByName(ctx, productName)
	if err != nil {
		return contractx.Sale{}, fmt.Errorf("look up %s: %w", productName, err)
	}
	if item == nil {
		return contractx.Sale{}, contractx.ErrItemNotFound
	}
	if item.QuantityInStock <= 0 {
		return contractx.Sale{}, contractx.ErrOutOfStock
	}

	price, err := e.chargedPrice(ctx, *item)
	if err != nil {
		return contractx.Sale{}, err
	}
	if err := e.ledger.ApplySale(ctx, item.ProductName, 1, price, contractx.AgentCustomer); err != nil {
		return contractx.Sale{}, fmt.Errorf("apply sale for %s: %w", item.ProductName, err)
	}
	return contractx.Sale{ProductName: item.ProductName, Price: price}, nil
}

// chargedPrice is the retail price reduced by an active discount, rounded to
// two decimal places.
func (e *Executor) chargedPrice(ctx context.Context, item contractx.InventoryItem) (float64, error) {
	price := item.RetailPrice

	discount, err := e.ledger.DiscountFor(ctx, item.ProductName)
	if err != nil {
		return 0, fmt.Errorf("read discount for %s: %w", item.ProductName, err)
	}
	if discount != nil && discount.DiscountPct > 0 {
		price = price * (1 - float64(discount.DiscountPct)/100)
	}
	return roundCents(price), nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
