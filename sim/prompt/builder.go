// Package prompt renders the natural-language prompts fed to the agents.
// Both builders are pure: identical snapshots produce byte-identical prompts,
// which is what keeps the decision pipeline testable offline.
package prompt

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	contractx "github.com/openvend/vendsim/sim/contract"
)

var (
	//go:embed template/operator_actions.txt
	operatorActionsRaw string

	//go:embed template/customer_request.txt
	customerRequestRaw string
)

const (
	noRecentSales    = "No recent sales."
	noRecentMessages = "No recent customer messages."
)

// OperatorSnapshot is everything the operator prompt is rendered from.
type OperatorSnapshot struct {
	CashBalance     float64
	Inventory       []contractx.InventoryItem
	TransactionLogs []contractx.TransactionLog
	Messages        []contractx.ConversationMessage
	Catalog         contractx.Catalog
}

// CustomerSnapshot is everything the customer prompt is rendered from.
type CustomerSnapshot struct {
	Inventory []contractx.InventoryItem
	Messages  []contractx.ConversationMessage
}

// Operator renders the vending-machine operator prompt: balance, inventory,
// Customer-attributed sales, vendor catalog, conversation excerpt, and the
// fixed four-action instruction block.
func Operator(snap OperatorSnapshot) string {
	var b strings.Builder

	b.WriteString("You are the AI operator of a vending machine. Your goal is to maximize profit.\n")
	fmt.Fprintf(&b, "You have a cash balance of $%.2f.\n\n", snap.CashBalance)

	b.WriteString("**Current Vending Machine Inventory:**\n")
	b.WriteString(inventorySummary(snap.Inventory))
	b.WriteString("\n\n")

	b.WriteString("**Recent Sales:**\n")
	b.WriteString(salesSummary(snap.TransactionLogs))
	b.WriteString("\n\n")

	b.WriteString("**Vendor Catalog (Items you can buy):**\n")
	b.WriteString(catalogSummary(snap.Catalog))
	b.WriteString("\n\n")

	b.WriteString("**Conversation History:**\n")
	b.WriteString(conversationSummary(snap.Messages))
	b.WriteString("\n\n")

	b.WriteString(strings.TrimSpace(operatorActionsRaw))
	return b.String()
}

// Customer renders the customer-agent prompt: inventory, conversation
// excerpt, and the fixed REQUEST instruction block.
func Customer(snap CustomerSnapshot) string {
	var b strings.Builder

	b.WriteString("You are a customer at a vending machine.\n\n")

	b.WriteString("**Vending Machine Inventory:**\n")
	b.WriteString(inventorySummary(snap.Inventory))
	b.WriteString("\n\n")

	b.WriteString("**Conversation History:**\n")
	b.WriteString(conversationSummary(snap.Messages))
	b.WriteString("\n\n")

	b.WriteString(strings.TrimSpace(customerRequestRaw))
	return b.String()
}

func inventorySummary(items []contractx.InventoryItem) string {
	if len(items) == 0 {
		return "- The machine is empty."
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- %s: %d units @ $%.2f", item.ProductName, item.QuantityInStock, item.RetailPrice))
	}
	return strings.Join(lines, "\n")
}

// salesSummary lists sales attributed to the customer agent, newest first as
// given.
func salesSummary(logs []contractx.TransactionLog) string {
	lines := make([]string, 0, len(logs))
	for _, entry := range logs {
		if entry.AgentName != contractx.AgentCustomer {
			continue
		}
		lines = append(lines, fmt.Sprintf("- Sold 1 unit of %s for $%.2f at %s",
			entry.Product, entry.Price, entry.CreatedAt.UTC().Format(time.RFC3339)))
	}
	if len(lines) == 0 {
		return noRecentSales
	}
	return strings.Join(lines, "\n")
}

// catalogSummary sorts product names so map iteration order can never leak
// into the prompt.
func catalogSummary(cat contractx.Catalog) string {
	if len(cat) == 0 {
		return "- Nothing is available from the vendor."
	}
	names := make([]string, 0, len(cat))
	for name := range cat {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("- %s: $%.2f", name, cat[name].Cost))
	}
	return strings.Join(lines, "\n")
}

func conversationSummary(msgs []contractx.ConversationMessage) string {
	if len(msgs) == 0 {
		return noRecentMessages
	}
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Sender, msg.Content))
	}
	return strings.Join(lines, "\n")
}
