package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/openvend/vendsim/sim/contract"
	parserx "github.com/openvend/vendsim/sim/parser"
	promptx "github.com/openvend/vendsim/sim/prompt"
)

type stepInput struct {
	SimulationID string
	StepNumber   int
}

// graphState is threaded through the step pipeline, one node filling in what
// the next one reads.
type graphState struct {
	SimulationID string
	StepNumber   int

	CustomerPrompt   string
	CustomerResponse string

	OperatorPrompt   string
	OperatorResponse string
	OperatorAction   *contractx.Action

	Purchases []contractx.Sale
}

func (o *Orchestrator) compileStepGraph(ctx context.Context) (compose.Runnable[stepInput, contractx.StepResult], error) {
	graph := compose.NewGraph[stepInput, contractx.StepResult]()

	if err := graph.AddLambdaNode("customer_turn",
		compose.InvokableLambda(func(ctx context.Context, in stepInput) (*graphState, error) {
			return o.customerTurn(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node customer_turn: %w", err)
	}

	if err := graph.AddLambdaNode("operator_turn",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			return o.operatorTurn(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node operator_turn: %w", err)
	}

	if err := graph.AddLambdaNode("purchase_tick",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			return o.purchaseTick(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node purchase_tick: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_step",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (contractx.StepResult, error) {
			return contractx.StepResult{
				SimulationID:     in.SimulationID,
				StepNumber:       in.StepNumber,
				CustomerRequest:  in.CustomerResponse,
				OperatorPrompt:   in.OperatorPrompt,
				OperatorResponse: in.OperatorResponse,
				OperatorAction:   in.OperatorAction,
				Purchases:        in.Purchases,
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_step: %w", err)
	}

	edges := [][2]string{
		{compose.START, "customer_turn"},
		{"customer_turn", "operator_turn"},
		{"operator_turn", "purchase_tick"},
		{"purchase_tick", "finalize_step"},
		{"finalize_step", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("vendsim.step"))
	if err != nil {
		return nil, fmt.Errorf("compile step graph: %w", err)
	}
	return runner, nil
}

// customerTurn asks the customer agent for one request sentence and records
// it in the conversation and audit trail.
func (o *Orchestrator) customerTurn(ctx context.Context, in stepInput) (*graphState, error) {
	st := &graphState{
		SimulationID: in.SimulationID,
		StepNumber:   in.StepNumber,
	}

	snap := promptx.CustomerSnapshot{
		Inventory: o.reader.Inventory(ctx),
		Messages:  o.reader.RecentMessages(ctx, st.SimulationID, o.cfg.MessageLimit),
	}
	st.CustomerPrompt = promptx.Customer(snap)

	response, err := o.customer.Complete(ctx, st.CustomerPrompt)
	if err != nil {
		// Completers are fallback-wrapped; an error here means the caller
		// wired a bare one, and the turn cannot proceed without a reply.
		return nil, fmt.Errorf("customer completion: %w", err)
	}
	st.CustomerResponse = response

	o.appendMessage(ctx, st.SimulationID, contractx.AgentCustomer, response)
	o.appendAudit(ctx, contractx.SimulationLogEntry{
		SimulationID: st.SimulationID,
		StepNumber:   st.StepNumber,
		AgentName:    contractx.AgentCustomer,
		Prompt:       st.CustomerPrompt,
		Response:     response,
	})
	return st, nil
}

// operatorTurn rebuilds the full snapshot (the customer's new message
// included), asks the operator agent for a decision, parses it, and applies
// it. Action-application failures are diagnostics, not step failures.
func (o *Orchestrator) operatorTurn(ctx context.Context, st *graphState) (*graphState, error) {
	snap := promptx.OperatorSnapshot{
		CashBalance:     o.reader.CashBalance(ctx),
		Inventory:       o.reader.Inventory(ctx),
		TransactionLogs: o.reader.TransactionLogs(ctx, o.cfg.TransactionLimit),
		Messages:        o.reader.RecentMessages(ctx, st.SimulationID, o.cfg.MessageLimit),
		Catalog:         o.catalog.Vendor(ctx),
	}
	st.OperatorPrompt = promptx.Operator(snap)

	response, err := o.operator.Complete(ctx, st.OperatorPrompt)
	if err != nil {
		return nil, fmt.Errorf("operator completion: %w", err)
	}
	st.OperatorResponse = response

	action := parserx.Parse(response)
	st.OperatorAction = &action

	if err := o.executor.Execute(ctx, action); err != nil {
		log.Error().Err(err).
			Str("simulation_id", st.SimulationID).
			Str("action", string(action.Type)).
			Msg("action execution failed")
	}

	o.appendMessage(ctx, st.SimulationID, contractx.AgentVendingMachine, response)
	o.appendAudit(ctx, contractx.SimulationLogEntry{
		SimulationID: st.SimulationID,
		StepNumber:   st.StepNumber,
		AgentName:    contractx.AgentVendingMachine,
		Prompt:       st.OperatorPrompt,
		Response:     response,
		ParsedAction: st.OperatorAction,
	})
	return st, nil
}

func (o *Orchestrator) purchaseTick(ctx context.Context, st *graphState) (*graphState, error) {
	sales, err := o.executor.SimulateCustomerPurchases(ctx)
	if err != nil {
		log.Warn().Err(err).Str("simulation_id", st.SimulationID).Msg("purchase tick incomplete")
	}
	st.Purchases = sales
	return st, nil
}

// appendMessage and appendAudit never fail the step; losing a log line is
// preferable to aborting a turn that already mutated economic state.
func (o *Orchestrator) appendMessage(ctx context.Context, simulationID string, sender contractx.AgentName, content string) {
	err := o.conversations.AppendMessage(ctx, contractx.ConversationMessage{
		SimulationID: simulationID,
		Sender:       sender,
		Content:      content,
		CreatedAt:    o.now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("simulation_id", simulationID).Msg("append conversation message failed")
	}
}

func (o *Orchestrator) appendAudit(ctx context.Context, entry contractx.SimulationLogEntry) {
	entry.CreatedAt = o.now().UTC()
	if err := o.conversations.AppendSimulationLog(ctx, entry); err != nil {
		log.Warn().Err(err).Str("simulation_id", entry.SimulationID).Msg("append simulation log failed")
	}
}
