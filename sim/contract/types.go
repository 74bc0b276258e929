package contract

import "time"

// AgentName identifies who produced a transaction or message.
type AgentName string

const (
	AgentCustomer       AgentName = "Customer"
	AgentVendingMachine AgentName = "VendingMachine"
	AgentSystem         AgentName = "System"
)

// ActionType tags the closed set of operator decisions.
type ActionType string

const (
	ActionBuy           ActionType = "BUY"
	ActionUpdatePrice   ActionType = "UPDATE_PRICE"
	ActionOfferDiscount ActionType = "OFFER_DISCOUNT"
	ActionDoNothing     ActionType = "DO_NOTHING"
	ActionUnknown       ActionType = "UNKNOWN"
)

// Action is the structured form of an operator reply. Exactly the fields for
// the tagged Type are set; RawText is kept only on UNKNOWN for diagnostics.
type Action struct {
	Type        ActionType `json:"action"`
	ItemName    string     `json:"item_name,omitempty"`
	Quantity    int        `json:"quantity,omitempty"`
	Price       float64    `json:"price,omitempty"`
	DiscountPct int        `json:"discount_pct,omitempty"`
	RawText     string     `json:"raw_text,omitempty"`
}

type InventoryItem struct {
	ProductName     string  `json:"product_name"`
	QuantityInStock int     `json:"quantity_in_stock"`
	RetailPrice     float64 `json:"retail_price"`
	VendorCost      float64 `json:"vendor_cost"`
}

type CashBalance struct {
	AccountName string  `json:"account_name"`
	Balance     float64 `json:"balance"`
}

// TransactionLog is an append-only sale/purchase record.
type TransactionLog struct {
	Product   string    `json:"product"`
	Price     float64   `json:"price"`
	AgentName AgentName `json:"agent_name"`
	CreatedAt time.Time `json:"created_at"`
}

type Discount struct {
	ProductName string `json:"product_name"`
	DiscountPct int    `json:"discount_pct"`
}

type ConversationMessage struct {
	SimulationID string    `json:"simulation_id"`
	Sender       AgentName `json:"sender"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// SimulationLogEntry is the audit record for one agent turn within a step.
type SimulationLogEntry struct {
	SimulationID string    `json:"simulation_id"`
	StepNumber   int       `json:"step_number"`
	AgentName    AgentName `json:"agent_name"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	ParsedAction *Action   `json:"parsed_action,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type SimulationStatus string

const (
	SimulationRunning  SimulationStatus = "running"
	SimulationFinished SimulationStatus = "finished"
)

type Simulation struct {
	ID          string           `json:"id"`
	Status      SimulationStatus `json:"status"`
	CurrentStep int              `json:"current_step"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ChatMessage belongs to the human-facing chat path, not the simulation.
type ChatMessage struct {
	ChatID     string    `json:"chat_id"`
	ProviderID string    `json:"provider_id"`
	Speaker    string    `json:"speaker"` // "System" | "User" | "Assistant"
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// CatalogEntry is one vendor-side product listing.
type CatalogEntry struct {
	Cost            float64 `json:"cost"`
	WholesalePrice  float64 `json:"wholesale_price"`
	QuantityInStock int     `json:"quantity_in_stock"`
}

// Catalog maps product name to its vendor listing.
type Catalog map[string]CatalogEntry

// Sale is one completed customer purchase from a simulation tick.
type Sale struct {
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
}

// StepResult aggregates everything that happened in one simulation step.
type StepResult struct {
	SimulationID     string  `json:"simulation_id"`
	StepNumber       int     `json:"step_number"`
	CustomerRequest  string  `json:"customer_request"`
	OperatorPrompt   string  `json:"operator_prompt"`
	OperatorResponse string  `json:"operator_response"`
	OperatorAction   *Action `json:"operator_action"`
	Purchases        []Sale  `json:"purchases"`
}
