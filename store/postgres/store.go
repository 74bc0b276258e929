// Package postgres implements the sim/contract.Store persistence contract on
// PostgreSQL via bun. Sale and restock bookkeeping run inside a single
// transaction so inventory, balance, and the transaction log can never drift
// apart, replacing the database triggers the reference deployment relied on.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/openvend/vendsim/sim/contract"
)

// operatorAccount is the single cash-balance row the machine operates on.
const operatorAccount = "vending_machine"

type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"10s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"8"`
}

type Store struct {
	db  *bun.DB
	now func() time.Time
}

var _ contractx.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewWithDB(bun.NewDB(sqldb, pgdialect.New())), nil
}

// NewWithDB wraps an existing bun handle. Test hook.
func NewWithDB(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Init creates missing tables and seeds the operator cash-balance row.
func (s *Store) Init(ctx context.Context) error {
	models := []any{
		(*inventoryRow)(nil),
		(*cashBalanceRow)(nil),
		(*transactionLogRow)(nil),
		(*discountRow)(nil),
		(*agentMessageRow)(nil),
		(*simulationLogRow)(nil),
		(*vendorCatalogRow)(nil),
		(*simulationRow)(nil),
		(*userAPIKeyRow)(nil),
		(*chatMessageRow)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	seed := &cashBalanceRow{AccountName: operatorAccount, Balance: 0}
	if _, err := s.db.NewInsert().Model(seed).On("CONFLICT (account_name) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("seed cash balance: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

/* ------------------------------- inventory ------------------------------- */

func (s *Store) Inventory(ctx context.Context) ([]contractx.InventoryItem, error) {
	var rows []inventoryRow
	if err := s.db.NewSelect().Model(&rows).Order("product_name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select inventory: %w", err)
	}

	items := make([]contractx.InventoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, inventoryItem(row))
	}
	return items, nil
}

func (s *Store) ItemByName(ctx context.Context, productName string) (*contractx.InventoryItem, error) {
	var row inventoryRow
	err := s.db.NewSelect().Model(&row).Where("product_name = ?", productName).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select item %s: %w", productName, err)
	}
	item := inventoryItem(row)
	return &item, nil
}

func (s *Store) UpdateItemQuantity(ctx context.Context, productName string, quantity int) error {
	_, err := s.db.NewUpdate().
		Model((*inventoryRow)(nil)).
		Set("quantity_in_stock = ?", quantity).
		Where("product_name = ?", productName).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update quantity for %s: %w", productName, err)
	}
	return nil
}

func (s *Store) UpdateItemPrice(ctx context.Context, productName string, price float64) error {
	_, err := s.db.NewUpdate().
		Model((*inventoryRow)(nil)).
		Set("retail_price = ?", price).
		Where("product_name = ?", productName).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update price for %s: %w", productName, err)
	}
	return nil
}

func (s *Store) CashBalance(ctx context.Context) (float64, error) {
	var row cashBalanceRow
	err := s.db.NewSelect().Model(&row).Where("account_name = ?", operatorAccount).Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("select cash balance: %w", err)
	}
	return row.Balance, nil
}

/* --------------------------------- ledger -------------------------------- */

func (s *Store) TransactionLogs(ctx context.Context, limit int) ([]contractx.TransactionLog, error) {
	var rows []transactionLogRow
	err := s.db.NewSelect().Model(&rows).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select transaction logs: %w", err)
	}

	logs := make([]contractx.TransactionLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, contractx.TransactionLog{
			Product:   row.Product,
			Price:     row.Price,
			AgentName: contractx.AgentName(row.AgentName),
			CreatedAt: row.CreatedAt,
		})
	}
	return logs, nil
}

func (s *Store) UpsertDiscount(ctx context.Context, d contractx.Discount) error {
	row := &discountRow{ProductName: d.ProductName, DiscountPct: d.DiscountPct}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (product_name) DO UPDATE").
		Set("discount_pct = EXCLUDED.discount_pct").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert discount for %s: %w", d.ProductName, err)
	}
	return nil
}

func (s *Store) DiscountFor(ctx context.Context, productName string) (*contractx.Discount, error) {
	var row discountRow
	err := s.db.NewSelect().Model(&row).Where("product_name = ?", productName).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select discount for %s: %w", productName, err)
	}
	return &contractx.Discount{ProductName: row.ProductName, DiscountPct: row.DiscountPct}, nil
}

// ApplySale removes quantity units from stock, credits the balance with the
// charged price, and appends the transaction log row, all in one
// transaction. A sale that would drive stock negative is rejected.
func (s *Store) ApplySale(ctx context.Context, productName string, quantity int, price float64, agent contractx.AgentName) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: sale quantity must be positive", contractx.ErrValidation)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row inventoryRow
		err := tx.NewSelect().Model(&row).
			Where("product_name = ?", productName).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return contractx.ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("lock item %s: %w", productName, err)
		}
		if row.QuantityInStock < quantity {
			return contractx.ErrOutOfStock
		}

		if _, err := tx.NewUpdate().Model((*inventoryRow)(nil)).
			Set("quantity_in_stock = quantity_in_stock - ?", quantity).
			Where("product_name = ?", productName).
			Exec(ctx); err != nil {
			return fmt.Errorf("decrement stock for %s: %w", productName, err)
		}

		if err := adjustBalance(ctx, tx, price); err != nil {
			return err
		}

		return appendLog(ctx, tx, transactionLogRow{
			Product:   productName,
			Price:     price,
			AgentName: string(agent),
			CreatedAt: s.now().UTC(),
		})
	})
}

// ApplyRestock adds quantity units of stock, debits the balance by the
// vendor cost, and appends the transaction log row attributed to the
// operator, all in one transaction. A product the machine has never carried
// gets a fresh inventory row priced at its unit cost until the operator
// reprices it.
func (s *Store) ApplyRestock(ctx context.Context, productName string, quantity int, totalCost float64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: restock quantity must be positive", contractx.ErrValidation)
	}
	unitCost := totalCost / float64(quantity)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := &inventoryRow{
			ProductName:     productName,
			QuantityInStock: quantity,
			RetailPrice:     unitCost,
			VendorCost:      unitCost,
		}
		if _, err := tx.NewInsert().Model(row).
			On("CONFLICT (product_name) DO UPDATE").
			Set("quantity_in_stock = inv.quantity_in_stock + EXCLUDED.quantity_in_stock").
			Exec(ctx); err != nil {
			return fmt.Errorf("increment stock for %s: %w", productName, err)
		}

		if err := adjustBalance(ctx, tx, -totalCost); err != nil {
			return err
		}

		return appendLog(ctx, tx, transactionLogRow{
			Product:   productName,
			Price:     totalCost,
			AgentName: string(contractx.AgentVendingMachine),
			CreatedAt: s.now().UTC(),
		})
	})
}

func adjustBalance(ctx context.Context, tx bun.Tx, delta float64) error {
	res, err := tx.NewUpdate().Model((*cashBalanceRow)(nil)).
		Set("balance = balance + ?", delta).
		Where("account_name = ?", operatorAccount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("adjust cash balance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return errors.New("cash balance row is missing")
	}
	return nil
}

func appendLog(ctx context.Context, tx bun.Tx, row transactionLogRow) error {
	if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("append transaction log: %w", err)
	}
	return nil
}

/* ----------------------------- conversations ----------------------------- */

func (s *Store) RecentMessages(ctx context.Context, simulationID string, limit int) ([]contractx.ConversationMessage, error) {
	var rows []agentMessageRow
	err := s.db.NewSelect().Model(&rows).
		Where("simulation_id = ?", simulationID).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select agent messages: %w", err)
	}

	msgs := make([]contractx.ConversationMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, contractx.ConversationMessage{
			SimulationID: row.SimulationID,
			Sender:       contractx.AgentName(row.Sender),
			Content:      row.Content,
			CreatedAt:    row.CreatedAt,
		})
	}
	return msgs, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg contractx.ConversationMessage) error {
	row := &agentMessageRow{
		SimulationID: msg.SimulationID,
		Sender:       string(msg.Sender),
		Content:      msg.Content,
		CreatedAt:    orNow(msg.CreatedAt, s.now),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append agent message: %w", err)
	}
	return nil
}

func (s *Store) AppendSimulationLog(ctx context.Context, entry contractx.SimulationLogEntry) error {
	row := &simulationLogRow{
		SimulationID: entry.SimulationID,
		StepNumber:   entry.StepNumber,
		AgentName:    string(entry.AgentName),
		Prompt:       entry.Prompt,
		Response:     entry.Response,
		CreatedAt:    orNow(entry.CreatedAt, s.now),
	}
	if entry.ParsedAction != nil {
		encoded, err := json.Marshal(entry.ParsedAction)
		if err != nil {
			return fmt.Errorf("encode parsed action: %w", err)
		}
		row.ParsedAction = encoded
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append simulation log: %w", err)
	}
	return nil
}

func (s *Store) SimulationLogs(ctx context.Context, simulationID string, limit int) ([]contractx.SimulationLogEntry, error) {
	var rows []simulationLogRow
	query := s.db.NewSelect().Model(&rows).
		Where("simulation_id = ?", simulationID).
		Order("step_number ASC", "id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select simulation logs: %w", err)
	}

	entries := make([]contractx.SimulationLogEntry, 0, len(rows))
	for _, row := range rows {
		entry := contractx.SimulationLogEntry{
			SimulationID: row.SimulationID,
			StepNumber:   row.StepNumber,
			AgentName:    contractx.AgentName(row.AgentName),
			Prompt:       row.Prompt,
			Response:     row.Response,
			CreatedAt:    row.CreatedAt,
		}
		if len(row.ParsedAction) > 0 {
			var action contractx.Action
			if err := json.Unmarshal(row.ParsedAction, &action); err == nil {
				entry.ParsedAction = &action
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

/* ------------------------------- simulations ------------------------------ */

func (s *Store) CreateSimulation(ctx context.Context, sim contractx.Simulation) error {
	row := &simulationRow{
		ID:          sim.ID,
		Status:      string(sim.Status),
		CurrentStep: sim.CurrentStep,
		CreatedAt:   orNow(sim.CreatedAt, s.now),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

func (s *Store) Simulation(ctx context.Context, id string) (*contractx.Simulation, error) {
	var row simulationRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select simulation %s: %w", id, err)
	}
	return &contractx.Simulation{
		ID:          row.ID,
		Status:      contractx.SimulationStatus(row.Status),
		CurrentStep: row.CurrentStep,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (s *Store) RunningSimulations(ctx context.Context) ([]contractx.Simulation, error) {
	var rows []simulationRow
	err := s.db.NewSelect().Model(&rows).
		Where("status = ?", string(contractx.SimulationRunning)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select running simulations: %w", err)
	}

	sims := make([]contractx.Simulation, 0, len(rows))
	for _, row := range rows {
		sims = append(sims, contractx.Simulation{
			ID:          row.ID,
			Status:      contractx.SimulationStatus(row.Status),
			CurrentStep: row.CurrentStep,
			CreatedAt:   row.CreatedAt,
		})
	}
	return sims, nil
}

func (s *Store) SetSimulationStep(ctx context.Context, id string, step int, status contractx.SimulationStatus) error {
	_, err := s.db.NewUpdate().Model((*simulationRow)(nil)).
		Set("current_step = ?", step).
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update simulation %s: %w", id, err)
	}
	return nil
}

/* -------------------------- catalog, keys, chat -------------------------- */

func (s *Store) VendorCatalog(ctx context.Context) (contractx.Catalog, error) {
	var rows []vendorCatalogRow
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select vendor catalog: %w", err)
	}

	cat := make(contractx.Catalog, len(rows))
	for _, row := range rows {
		cat[row.ProductName] = contractx.CatalogEntry{
			Cost:            row.Cost,
			WholesalePrice:  row.WholesalePrice,
			QuantityInStock: row.QuantityInStock,
		}
	}
	return cat, nil
}

func (s *Store) UserAPIKey(ctx context.Context, userID string) (string, error) {
	var row userAPIKeyRow
	err := s.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select user api key: %w", err)
	}
	return row.EncryptedKey, nil
}

func (s *Store) AppendChatMessage(ctx context.Context, msg contractx.ChatMessage) error {
	row := &chatMessageRow{
		ChatID:     msg.ChatID,
		ProviderID: msg.ProviderID,
		Speaker:    msg.Speaker,
		Content:    msg.Content,
		CreatedAt:  orNow(msg.CreatedAt, s.now),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (s *Store) ChatMessages(ctx context.Context, chatID string) ([]contractx.ChatMessage, error) {
	var rows []chatMessageRow
	err := s.db.NewSelect().Model(&rows).
		Where("chat_id = ?", chatID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select chat messages: %w", err)
	}

	msgs := make([]contractx.ChatMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, contractx.ChatMessage{
			ChatID:     row.ChatID,
			ProviderID: row.ProviderID,
			Speaker:    row.Speaker,
			Content:    row.Content,
			CreatedAt:  row.CreatedAt,
		})
	}
	return msgs, nil
}

func inventoryItem(row inventoryRow) contractx.InventoryItem {
	return contractx.InventoryItem{
		ProductName:     row.ProductName,
		QuantityInStock: row.QuantityInStock,
		RetailPrice:     row.RetailPrice,
		VendorCost:      row.VendorCost,
	}
}

func orNow(t time.Time, now func() time.Time) time.Time {
	if t.IsZero() {
		return now().UTC()
	}
	return t.UTC()
}
