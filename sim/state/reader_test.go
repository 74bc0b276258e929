package state

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/openvend/vendsim/sim/contract"
)

type fakeInventoryStore struct {
	items   []contractx.InventoryItem
	balance float64
	err     error
}

func (f *fakeInventoryStore) Inventory(ctx context.Context) ([]contractx.InventoryItem, error) {
	return f.items, f.err
}

func (f *fakeInventoryStore) ItemByName(ctx context.Context, productName string) (*contractx.InventoryItem, error) {
	return nil, f.err
}

func (f *fakeInventoryStore) UpdateItemQuantity(ctx context.Context, productName string, quantity int) error {
	return f.err
}

func (f *fakeInventoryStore) UpdateItemPrice(ctx context.Context, productName string, price float64) error {
	return f.err
}

func (f *fakeInventoryStore) CashBalance(ctx context.Context) (float64, error) {
	return f.balance, f.err
}

type fakeLedgerStore struct {
	logs      []contractx.TransactionLog
	err       error
	seenLimit int
}

func (f *fakeLedgerStore) TransactionLogs(ctx context.Context, limit int) ([]contractx.TransactionLog, error) {
	f.seenLimit = limit
	return f.logs, f.err
}

func (f *fakeLedgerStore) UpsertDiscount(ctx context.Context, d contractx.Discount) error {
	return f.err
}

func (f *fakeLedgerStore) DiscountFor(ctx context.Context, productName string) (*contractx.Discount, error) {
	return nil, f.err
}

func (f *fakeLedgerStore) ApplySale(ctx context.Context, productName string, quantity int, price float64, agent contractx.AgentName) error {
	return f.err
}

func (f *fakeLedgerStore) ApplyRestock(ctx context.Context, productName string, quantity int, totalCost float64) error {
	return f.err
}

type fakeConversationStore struct {
	msgs      []contractx.ConversationMessage
	err       error
	seenLimit int
}

func (f *fakeConversationStore) RecentMessages(ctx context.Context, simulationID string, limit int) ([]contractx.ConversationMessage, error) {
	f.seenLimit = limit
	out := make([]contractx.ConversationMessage, len(f.msgs))
	copy(out, f.msgs)
	return out, f.err
}

func (f *fakeConversationStore) AppendMessage(ctx context.Context, msg contractx.ConversationMessage) error {
	return f.err
}

func (f *fakeConversationStore) AppendSimulationLog(ctx context.Context, entry contractx.SimulationLogEntry) error {
	return f.err
}

func (f *fakeConversationStore) SimulationLogs(ctx context.Context, simulationID string, limit int) ([]contractx.SimulationLogEntry, error) {
	return nil, f.err
}

func newTestReader(inv *fakeInventoryStore, ledger *fakeLedgerStore, conv *fakeConversationStore) *Reader {
	if inv == nil {
		inv = &fakeInventoryStore{}
	}
	if ledger == nil {
		ledger = &fakeLedgerStore{}
	}
	if conv == nil {
		conv = &fakeConversationStore{}
	}
	return NewReader(inv, ledger, conv)
}

func TestRecentMessagesReversedToChronological(t *testing.T) {
	t.Parallel()

	conv := &fakeConversationStore{
		// Store order is newest first.
		msgs: []contractx.ConversationMessage{
			{Content: "third"},
			{Content: "second"},
			{Content: "first"},
		},
	}
	r := newTestReader(nil, nil, conv)

	got := r.RecentMessages(context.Background(), "sim-1", 3)
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i, content := range want {
		if got[i].Content != content {
			t.Fatalf("message[%d] = %q, want %q", i, got[i].Content, content)
		}
	}
}

func TestRecentMessagesDefaultLimit(t *testing.T) {
	t.Parallel()

	conv := &fakeConversationStore{}
	r := newTestReader(nil, nil, conv)

	r.RecentMessages(context.Background(), "sim-1", 0)
	if conv.seenLimit != DefaultMessageLimit {
		t.Fatalf("limit passed to store = %d, want %d", conv.seenLimit, DefaultMessageLimit)
	}
}

func TestTransactionLogsDefaultLimit(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedgerStore{}
	r := newTestReader(nil, ledger, nil)

	r.TransactionLogs(context.Background(), -1)
	if ledger.seenLimit != DefaultTransactionLimit {
		t.Fatalf("limit passed to store = %d, want %d", ledger.seenLimit, DefaultTransactionLimit)
	}
}

func TestReadsDegradeToEmptyOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("store down")
	r := newTestReader(
		&fakeInventoryStore{items: []contractx.InventoryItem{{ProductName: "Gum"}}, balance: 9, err: boom},
		&fakeLedgerStore{logs: []contractx.TransactionLog{{Product: "Gum"}}, err: boom},
		&fakeConversationStore{msgs: []contractx.ConversationMessage{{Content: "hi"}}, err: boom},
	)
	ctx := context.Background()

	if got := r.Inventory(ctx); got != nil {
		t.Fatalf("Inventory = %v, want nil on store error", got)
	}
	if got := r.CashBalance(ctx); got != 0 {
		t.Fatalf("CashBalance = %v, want 0 on store error", got)
	}
	if got := r.TransactionLogs(ctx, 5); got != nil {
		t.Fatalf("TransactionLogs = %v, want nil on store error", got)
	}
	if got := r.RecentMessages(ctx, "sim-1", 5); got != nil {
		t.Fatalf("RecentMessages = %v, want nil on store error", got)
	}
}
