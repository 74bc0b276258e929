package contract

import "context"

// InventoryStore covers the inventory and cash-balance rows.
type InventoryStore interface {
	Inventory(ctx context.Context) ([]InventoryItem, error)
	ItemByName(ctx context.Context, productName string) (*InventoryItem, error)
	UpdateItemQuantity(ctx context.Context, productName string, quantity int) error
	UpdateItemPrice(ctx context.Context, productName string, price float64) error
	CashBalance(ctx context.Context) (float64, error)
}

// LedgerStore covers transaction history, discounts, and the two atomic
// bookkeeping operations. ApplySale and ApplyRestock must mutate inventory,
// balance, and the transaction log as one unit.
type LedgerStore interface {
	TransactionLogs(ctx context.Context, limit int) ([]TransactionLog, error)
	UpsertDiscount(ctx context.Context, d Discount) error
	DiscountFor(ctx context.Context, productName string) (*Discount, error)
	ApplySale(ctx context.Context, productName string, quantity int, price float64, agent AgentName) error
	ApplyRestock(ctx context.Context, productName string, quantity int, totalCost float64) error
}

// ConversationStore covers agent chatter and the per-turn audit trail.
// RecentMessages returns newest first, as stored.
type ConversationStore interface {
	RecentMessages(ctx context.Context, simulationID string, limit int) ([]ConversationMessage, error)
	AppendMessage(ctx context.Context, msg ConversationMessage) error
	AppendSimulationLog(ctx context.Context, entry SimulationLogEntry) error
	SimulationLogs(ctx context.Context, simulationID string, limit int) ([]SimulationLogEntry, error)
}

// SimulationStore tracks simulation runs for the scheduler.
type SimulationStore interface {
	CreateSimulation(ctx context.Context, sim Simulation) error
	Simulation(ctx context.Context, id string) (*Simulation, error)
	RunningSimulations(ctx context.Context) ([]Simulation, error)
	SetSimulationStep(ctx context.Context, id string, step int, status SimulationStatus) error
}

// CatalogStore reads the live vendor catalog.
type CatalogStore interface {
	VendorCatalog(ctx context.Context) (Catalog, error)
}

// CredentialStore resolves per-user encrypted API keys.
type CredentialStore interface {
	UserAPIKey(ctx context.Context, userID string) (string, error)
}

// ChatStore persists human chat history, oldest first on read.
type ChatStore interface {
	AppendChatMessage(ctx context.Context, msg ChatMessage) error
	ChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error)
}

// Store is the full persistence contract implemented by store/postgres.
type Store interface {
	InventoryStore
	LedgerStore
	ConversationStore
	SimulationStore
	CatalogStore
	CredentialStore
	ChatStore
}

// Completer produces one full LLM reply for a prompt. Implementations own
// retry/fallback policy; the orchestrator treats the result as opaque text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
