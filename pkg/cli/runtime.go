package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/action"
	"github.com/m-mizutani/huddle/pkg/agent"
	"github.com/m-mizutani/huddle/pkg/archive"
	"github.com/m-mizutani/huddle/pkg/conversation"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/repository"
	"github.com/m-mizutani/huddle/pkg/usecase/coordinator"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

// runtime is the assembled chat room: conversation, data store, agents and the coordinator
type runtime struct {
	conv        *conversation.Store
	store       *repository.Memory
	roster      []model.AgentConfig
	coordinator *coordinator.Coordinator
	archivers   []*archive.Archiver
	closeStore  func() error
}

// newRuntime builds every component from cfg. The coordinator is not started.
func (cfg *config) newRuntime(ctx context.Context, opts ...coordinator.Option) (_ *runtime, err error) {
	rt := &runtime{
		conv: conversation.New(conversation.WithRetention(int(cfg.retention))),
	}
	defer func() {
		if err != nil {
			rt.Close(ctx)
		}
	}()

	generator, err := cfg.newGenerator(ctx)
	if err != nil {
		return nil, err
	}

	rt.roster, err = cfg.newRoster()
	if err != nil {
		return nil, err
	}

	rt.store, rt.closeStore, err = cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	guard, err := cfg.newGuard(ctx)
	if err != nil {
		return nil, err
	}

	sinks, err := cfg.newSinks(ctx)
	if err != nil {
		return nil, err
	}
	for _, sink := range sinks {
		rt.archivers = append(rt.archivers, archive.New(rt.conv, sink, archive.WithLogger(logging.From(ctx))))
	}

	executor := action.NewExecutor(rt.store,
		action.WithConversation(rt.conv),
		action.WithGuard(guard),
	)

	agents, err := agent.Build(rt.roster, generator, executor, agent.WithTimeout(cfg.timeout))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build agents")
	}
	participants := make([]coordinator.Participant, len(agents))
	for i, a := range agents {
		participants[i] = a
	}

	coordOpts := []coordinator.Option{
		coordinator.WithPacing(cfg.pacing),
		coordinator.WithHistoryWindow(int(cfg.historyWindow)),
		coordinator.WithMaxDepth(int(cfg.maxDepth)),
	}
	rt.coordinator = coordinator.New(rt.conv, participants, append(coordOpts, opts...)...)

	logging.From(ctx).Info("chat room is ready",
		"provider", cfg.provider,
		"agents", len(agents),
		"archives", len(rt.archivers))
	return rt, nil
}

// Close stops the coordinator, drains the archives and saves pending data store changes
func (rt *runtime) Close(ctx context.Context) {
	logger := logging.From(ctx)

	if rt.coordinator != nil {
		rt.coordinator.Stop()
	}
	for _, a := range rt.archivers {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close archive", "error", err)
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to save data", "error", err)
		}
	}
	if rt.closeStore != nil {
		if err := rt.closeStore(); err != nil {
			logger.Warn("failed to close data store", "error", err)
		}
	}
}
