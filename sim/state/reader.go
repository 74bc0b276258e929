// Package state reads simulation state out of the shared store with
// degrade-to-empty semantics: a failed read yields empty data and a warning,
// never an error, so prompt building can proceed with "no data" framing.
package state

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/openvend/vendsim/sim/contract"
)

const (
	DefaultTransactionLimit = 20
	DefaultMessageLimit     = 5
)

type Reader struct {
	inventory     contractx.InventoryStore
	ledger        contractx.LedgerStore
	conversations contractx.ConversationStore
}

func NewReader(inventory contractx.InventoryStore, ledger contractx.LedgerStore, conversations contractx.ConversationStore) *Reader {
	return &Reader{
		inventory:     inventory,
		ledger:        ledger,
		conversations: conversations,
	}
}

func (r *Reader) Inventory(ctx context.Context) []contractx.InventoryItem {
	items, err := r.inventory.Inventory(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("inventory read failed")
		return nil
	}
	return items
}

func (r *Reader) CashBalance(ctx context.Context) float64 {
	balance, err := r.inventory.CashBalance(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cash balance read failed")
		return 0
	}
	return balance
}

// TransactionLogs returns up to limit records, newest first.
func (r *Reader) TransactionLogs(ctx context.Context, limit int) []contractx.TransactionLog {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	logs, err := r.ledger.TransactionLogs(ctx, limit)
	if err != nil {
		log.Warn().Err(err).Msg("transaction log read failed")
		return nil
	}
	return logs
}

// RecentMessages returns up to limit conversation messages oldest first. The
// store serves them newest first; prompts are built chronologically, so the
// slice is reversed here.
func (r *Reader) RecentMessages(ctx context.Context, simulationID string, limit int) []contractx.ConversationMessage {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	msgs, err := r.conversations.RecentMessages(ctx, simulationID, limit)
	if err != nil {
		log.Warn().Err(err).Str("simulation_id", simulationID).Msg("conversation read failed")
		return nil
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}
