// Package orchestrator sequences one simulation step: customer turn, then
// operator turn, then the probabilistic purchase tick, with every agent turn
// audited to the simulation log. The pipeline is strictly sequential.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	catalogx "github.com/openvend/vendsim/sim/catalog"
	contractx "github.com/openvend/vendsim/sim/contract"
	executorx "github.com/openvend/vendsim/sim/executor"
	statex "github.com/openvend/vendsim/sim/state"
)

type Config struct {
	// MaxSteps caps a simulation run; 0 means unbounded.
	MaxSteps int `split_words:"true" default:"50"`
	// MessageLimit bounds the conversation excerpt embedded in prompts.
	MessageLimit int `split_words:"true" default:"5"`
	// TransactionLimit bounds the sales history embedded in prompts.
	TransactionLimit int `split_words:"true" default:"20"`
}

type Orchestrator struct {
	reader        *statex.Reader
	catalog       *catalogx.Provider
	executor      *executorx.Executor
	conversations contractx.ConversationStore
	simulations   contractx.SimulationStore

	operator contractx.Completer
	customer contractx.Completer

	cfg Config
	now func() time.Time

	graphRunner compose.Runnable[stepInput, contractx.StepResult]
}

func New(
	reader *statex.Reader,
	catalog *catalogx.Provider,
	executor *executorx.Executor,
	conversations contractx.ConversationStore,
	simulations contractx.SimulationStore,
	operator contractx.Completer,
	customer contractx.Completer,
	cfg Config,
) (*Orchestrator, error) {
	if reader == nil || catalog == nil || executor == nil {
		return nil, errors.New("reader, catalog, and executor are required")
	}
	if conversations == nil || simulations == nil {
		return nil, errors.New("conversation and simulation stores are required")
	}
	if operator == nil || customer == nil {
		return nil, errors.New("operator and customer completers are required")
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = statex.DefaultMessageLimit
	}
	if cfg.TransactionLimit <= 0 {
		cfg.TransactionLimit = statex.DefaultTransactionLimit
	}

	o := &Orchestrator{
		reader:        reader,
		catalog:       catalog,
		executor:      executor,
		conversations: conversations,
		simulations:   simulations,
		operator:      operator,
		customer:      customer,
		cfg:           cfg,
		now:           time.Now,
	}

	graphRunner, err := o.compileStepGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Step runs one full simulation step for simulationID.
func (o *Orchestrator) Step(ctx context.Context, simulationID string, stepNumber int) (contractx.StepResult, error) {
	if simulationID == "" {
		return contractx.StepResult{}, fmt.Errorf("%w: simulation id is required", contractx.ErrValidation)
	}
	return o.graphRunner.Invoke(ctx, stepInput{
		SimulationID: simulationID,
		StepNumber:   stepNumber,
	})
}

// StartSimulation registers a fresh simulation run and returns it.
func (o *Orchestrator) StartSimulation(ctx context.Context) (contractx.Simulation, error) {
	sim := contractx.Simulation{
		ID:        uuid.NewString(),
		Status:    contractx.SimulationRunning,
		CreatedAt: o.now().UTC(),
	}
	if err := o.simulations.CreateSimulation(ctx, sim); err != nil {
		return contractx.Simulation{}, fmt.Errorf("create simulation: %w", err)
	}
	return sim, nil
}

// Advance runs the next step of an existing simulation and persists its
// progress, marking it finished once MaxSteps is reached.
func (o *Orchestrator) Advance(ctx context.Context, simulationID string) (contractx.StepResult, error) {
	sim, err := o.simulations.Simulation(ctx, simulationID)
	if err != nil {
		return contractx.StepResult{}, err
	}
	if sim == nil {
		return contractx.StepResult{}, contractx.ErrSimulationNotFound
	}
	if sim.Status != contractx.SimulationRunning {
		return contractx.StepResult{}, fmt.Errorf("%w: simulation %s is %s", contractx.ErrValidation, simulationID, sim.Status)
	}

	result, err := o.Step(ctx, simulationID, sim.CurrentStep)
	if err != nil {
		return contractx.StepResult{}, err
	}

	nextStep := sim.CurrentStep + 1
	status := contractx.SimulationRunning
	if o.cfg.MaxSteps > 0 && nextStep >= o.cfg.MaxSteps {
		status = contractx.SimulationFinished
	}
	if err := o.simulations.SetSimulationStep(ctx, simulationID, nextStep, status); err != nil {
		return result, fmt.Errorf("persist simulation progress: %w", err)
	}
	return result, nil
}
