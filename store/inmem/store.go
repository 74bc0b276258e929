// Package inmem is an in-memory implementation of the persistence contract,
// for tests and credential-free local runs. It mirrors the Postgres store's
// semantics, including atomic sale/restock bookkeeping and newest-first
// message reads.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	contractx "github.com/openvend/vendsim/sim/contract"
)

type Store struct {
	mu sync.Mutex

	items     map[string]contractx.InventoryItem
	balance   float64
	logs      []contractx.TransactionLog
	discounts map[string]int
	messages  []contractx.ConversationMessage
	simLogs   []contractx.SimulationLogEntry
	catalog   contractx.Catalog
	sims      map[string]contractx.Simulation
	keys      map[string]string
	chats     map[string][]contractx.ChatMessage

	now func() time.Time
}

var _ contractx.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		items:     make(map[string]contractx.InventoryItem),
		discounts: make(map[string]int),
		catalog:   make(contractx.Catalog),
		sims:      make(map[string]contractx.Simulation),
		keys:      make(map[string]string),
		chats:     make(map[string][]contractx.ChatMessage),
		now:       time.Now,
	}
}

/* --------------------------------- seeding -------------------------------- */

func (s *Store) SeedInventory(items ...contractx.InventoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.items[item.ProductName] = item
	}
}

func (s *Store) SeedCatalog(cat contractx.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, entry := range cat {
		s.catalog[name] = entry
	}
}

func (s *Store) SeedUserKey(userID, encryptedKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[userID] = encryptedKey
}

func (s *Store) SetBalance(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = v
}

/* -------------------------------- inventory ------------------------------- */

func (s *Store) Inventory(ctx context.Context) ([]contractx.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]contractx.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductName < items[j].ProductName })
	return items, nil
}

func (s *Store) ItemByName(ctx context.Context, productName string) (*contractx.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[productName]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) UpdateItemQuantity(ctx context.Context, productName string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[productName]; ok {
		item.QuantityInStock = quantity
		s.items[productName] = item
	}
	return nil
}

func (s *Store) UpdateItemPrice(ctx context.Context, productName string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[productName]; ok {
		item.RetailPrice = price
		s.items[productName] = item
	}
	return nil
}

func (s *Store) CashBalance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

/* ---------------------------------- ledger -------------------------------- */

func (s *Store) TransactionLogs(ctx context.Context, limit int) ([]contractx.TransactionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := make([]contractx.TransactionLog, 0, limit)
	for i := len(s.logs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, s.logs[i])
	}
	return logs, nil
}

func (s *Store) UpsertDiscount(ctx context.Context, d contractx.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discounts[d.ProductName] = d.DiscountPct
	return nil
}

func (s *Store) DiscountFor(ctx context.Context, productName string) (*contractx.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pct, ok := s.discounts[productName]
	if !ok {
		return nil, nil
	}
	return &contractx.Discount{ProductName: productName, DiscountPct: pct}, nil
}

func (s *Store) ApplySale(ctx context.Context, productName string, quantity int, price float64, agent contractx.AgentName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[productName]
	if !ok {
		return contractx.ErrItemNotFound
	}
	if item.QuantityInStock < quantity {
		return contractx.ErrOutOfStock
	}

	item.QuantityInStock -= quantity
	s.items[productName] = item
	s.balance += price
	s.logs = append(s.logs, contractx.TransactionLog{
		Product:   productName,
		Price:     price,
		AgentName: agent,
		CreatedAt: s.now().UTC(),
	})
	return nil
}

func (s *Store) ApplyRestock(ctx context.Context, productName string, quantity int, totalCost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[productName]
	if !ok {
		unitCost := totalCost / float64(quantity)
		item = contractx.InventoryItem{
			ProductName: productName,
			RetailPrice: unitCost,
			VendorCost:  unitCost,
		}
	}
	item.QuantityInStock += quantity
	s.items[productName] = item
	s.balance -= totalCost
	s.logs = append(s.logs, contractx.TransactionLog{
		Product:   productName,
		Price:     totalCost,
		AgentName: contractx.AgentVendingMachine,
		CreatedAt: s.now().UTC(),
	})
	return nil
}

/* ------------------------------ conversations ----------------------------- */

func (s *Store) RecentMessages(ctx context.Context, simulationID string, limit int) ([]contractx.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]contractx.ConversationMessage, 0, limit)
	for i := len(s.messages) - 1; i >= 0 && len(msgs) < limit; i-- {
		if s.messages[i].SimulationID == simulationID {
			msgs = append(msgs, s.messages[i])
		}
	}
	return msgs, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg contractx.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *Store) AppendSimulationLog(ctx context.Context, entry contractx.SimulationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	s.simLogs = append(s.simLogs, entry)
	return nil
}

func (s *Store) SimulationLogs(ctx context.Context, simulationID string, limit int) ([]contractx.SimulationLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []contractx.SimulationLogEntry
	for _, entry := range s.simLogs {
		if entry.SimulationID == simulationID {
			entries = append(entries, entry)
		}
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

/* ------------------------------- simulations ------------------------------ */

func (s *Store) CreateSimulation(ctx context.Context, sim contractx.Simulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sims[sim.ID] = sim
	return nil
}

func (s *Store) Simulation(ctx context.Context, id string) (*contractx.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, ok := s.sims[id]
	if !ok {
		return nil, nil
	}
	return &sim, nil
}

func (s *Store) RunningSimulations(ctx context.Context) ([]contractx.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sims []contractx.Simulation
	for _, sim := range s.sims {
		if sim.Status == contractx.SimulationRunning {
			sims = append(sims, sim)
		}
	}
	sort.Slice(sims, func(i, j int) bool { return sims[i].ID < sims[j].ID })
	return sims, nil
}

func (s *Store) SetSimulationStep(ctx context.Context, id string, step int, status contractx.SimulationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, ok := s.sims[id]
	if !ok {
		return contractx.ErrSimulationNotFound
	}
	sim.CurrentStep = step
	sim.Status = status
	s.sims[id] = sim
	return nil
}

/* --------------------------- catalog, keys, chat -------------------------- */

func (s *Store) VendorCatalog(ctx context.Context) (contractx.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat := make(contractx.Catalog, len(s.catalog))
	for name, entry := range s.catalog {
		cat[name] = entry
	}
	return cat, nil
}

func (s *Store) UserAPIKey(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[userID], nil
}

func (s *Store) AppendChatMessage(ctx context.Context, msg contractx.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	s.chats[msg.ChatID] = append(s.chats[msg.ChatID], msg)
	return nil
}

func (s *Store) ChatMessages(ctx context.Context, chatID string) ([]contractx.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]contractx.ChatMessage, len(s.chats[chatID]))
	copy(msgs, s.chats[chatID])
	return msgs, nil
}
