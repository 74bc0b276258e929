package postgres

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type inventoryRow struct {
	bun.BaseModel `bun:"table:inventory,alias:inv"`

	ProductName     string  `bun:"product_name,pk"`
	QuantityInStock int     `bun:"quantity_in_stock,notnull"`
	RetailPrice     float64 `bun:"retail_price,notnull"`
	VendorCost      float64 `bun:"vendor_cost,notnull"`
}

type cashBalanceRow struct {
	bun.BaseModel `bun:"table:cash_balance,alias:cb"`

	AccountName string  `bun:"account_name,pk"`
	Balance     float64 `bun:"balance,notnull"`
}

type transactionLogRow struct {
	bun.BaseModel `bun:"table:transaction_logs,alias:tl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Product   string    `bun:"product,notnull"`
	Price     float64   `bun:"price,notnull"`
	AgentName string    `bun:"agent_name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type discountRow struct {
	bun.BaseModel `bun:"table:discounts,alias:d"`

	ProductName string `bun:"product_name,pk"`
	DiscountPct int    `bun:"discount_pct,notnull"`
}

type agentMessageRow struct {
	bun.BaseModel `bun:"table:agent_messages,alias:am"`

	ID           int64     `bun:"id,pk,autoincrement"`
	SimulationID string    `bun:"simulation_id,notnull"`
	Sender       string    `bun:"sender,notnull"`
	Content      string    `bun:"content,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

type simulationLogRow struct {
	bun.BaseModel `bun:"table:simulation_logs,alias:sl"`

	ID           int64           `bun:"id,pk,autoincrement"`
	SimulationID string          `bun:"simulation_id,notnull"`
	StepNumber   int             `bun:"step_number,notnull"`
	AgentName    string          `bun:"agent_name,notnull"`
	Prompt       string          `bun:"prompt,notnull"`
	Response     string          `bun:"response,notnull"`
	ParsedAction json.RawMessage `bun:"parsed_action,type:jsonb,nullzero"`
	CreatedAt    time.Time       `bun:"created_at,notnull"`
}

type vendorCatalogRow struct {
	bun.BaseModel `bun:"table:vendor_catalog,alias:vc"`

	ProductName     string  `bun:"product_name,pk"`
	Cost            float64 `bun:"cost,notnull"`
	WholesalePrice  float64 `bun:"wholesale_price,notnull"`
	QuantityInStock int     `bun:"quantity_in_stock,notnull,default:0"`
}

type simulationRow struct {
	bun.BaseModel `bun:"table:simulations,alias:s"`

	ID          string    `bun:"id,pk"`
	Status      string    `bun:"status,notnull"`
	CurrentStep int       `bun:"current_step,notnull,default:0"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

type userAPIKeyRow struct {
	bun.BaseModel `bun:"table:user_api_keys,alias:uak"`

	UserID       string `bun:"user_id,pk"`
	EncryptedKey string `bun:"encrypted_key,notnull"`
}

type chatMessageRow struct {
	bun.BaseModel `bun:"table:chat_messages,alias:cm"`

	ID         int64     `bun:"id,pk,autoincrement"`
	ChatID     string    `bun:"chat_id,notnull"`
	ProviderID string    `bun:"provider_id"`
	Speaker    string    `bun:"speaker,notnull"`
	Content    string    `bun:"content,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}
