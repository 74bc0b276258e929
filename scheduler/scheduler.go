// Package scheduler advances running simulations on a cron cadence, so a
// started simulation keeps playing turns without anyone polling the step
// endpoint.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	contractx "github.com/openvend/vendsim/sim/contract"
	orchestratorx "github.com/openvend/vendsim/sim/orchestrator"
)

type Config struct {
	Enabled     bool          `split_words:"true" default:"true"`
	Spec        string        `split_words:"true" default:"@every 1m"`
	StepTimeout time.Duration `split_words:"true" default:"2m"`
}

type Scheduler struct {
	cfg  Config
	cron *cron.Cron
	orch *orchestratorx.Orchestrator
	sims contractx.SimulationStore
}

func New(cfg Config, orch *orchestratorx.Orchestrator, sims contractx.SimulationStore) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		cron: cron.New(),
		orch: orch,
		sims: sims,
	}
}

func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		log.Info().Msg("simulation scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.Spec, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("spec", s.cfg.Spec).Msg("simulation scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// tick advances each running simulation one step. Simulations are stepped
// sequentially; a failure in one does not stop the others.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StepTimeout)
	defer cancel()

	sims, err := s.sims.RunningSimulations(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list running simulations failed")
		return
	}

	for _, sim := range sims {
		if _, err := s.orch.Advance(ctx, sim.ID); err != nil {
			log.Error().Err(err).Str("simulation_id", sim.ID).Msg("scheduled step failed")
			continue
		}
		log.Debug().Str("simulation_id", sim.ID).Int("step", sim.CurrentStep).Msg("scheduled step complete")
	}
}
