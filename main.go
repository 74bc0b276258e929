package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	configx "github.com/openvend/vendsim/pkg/config"
	_ "github.com/openvend/vendsim/pkg/logger/autoload"
	openrouterx "github.com/openvend/vendsim/pkg/openrouter"
	schedulerx "github.com/openvend/vendsim/scheduler"
	serverx "github.com/openvend/vendsim/server"
	catalogx "github.com/openvend/vendsim/sim/catalog"
	executorx "github.com/openvend/vendsim/sim/executor"
	gatewayx "github.com/openvend/vendsim/sim/gateway"
	orchestratorx "github.com/openvend/vendsim/sim/orchestrator"
	statex "github.com/openvend/vendsim/sim/state"
	postgresx "github.com/openvend/vendsim/store/postgres"
)

type appConfig struct {
	KeySecret string `envconfig:"KEY_SECRET" split_words:"true"`
}

func main() {
	appCfg := configx.MustNew[appConfig]("VENDSIM")
	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	storeCfg := configx.MustNew[postgresx.Config]("POSTGRES")
	serverCfg := configx.MustNew[serverx.Config]("SERVER")
	schedulerCfg := configx.MustNew[schedulerx.Config]("SCHEDULER")
	orchestratorCfg := configx.MustNew[orchestratorx.Config]("SIM")

	ctx := context.Background()

	store, err := postgresx.New(*storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init store schema")
	}

	gw := gatewayx.New(*openRouterCfg, appCfg.KeySecret, store)

	reader := statex.NewReader(store, store, store)
	catalog := catalogx.NewProvider(store)
	executor := executorx.New(store, store, catalog)

	orch, err := orchestratorx.New(
		reader,
		catalog,
		executor,
		store,
		store,
		gatewayx.WithFallback(gw, gatewayx.OperatorFallback),
		gatewayx.WithFallback(gw, gatewayx.CustomerFallback),
		*orchestratorCfg,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	chat := gatewayx.NewChatService(gw, store)
	models := openrouterx.NewModelsClient(*openRouterCfg)

	sched := schedulerx.New(*schedulerCfg, orch, store)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}
	defer sched.Stop()

	srv := serverx.New(*serverCfg, store, orch, executor, chat, models)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}
}
