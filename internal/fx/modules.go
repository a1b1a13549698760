package fx

import (
	"context"
	"time"

	"junket-admin/internal/api"
	"junket-admin/internal/config"
	"junket-admin/internal/constants"
	"junket-admin/internal/database"
	"junket-admin/internal/draft"
	"junket-admin/internal/events"
	"junket-admin/internal/logger"
	"junket-admin/internal/picker"
	"junket-admin/internal/repository"
	"junket-admin/internal/server"
	"junket-admin/internal/service"
	"junket-admin/internal/storage"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideKeyValue picks the draft store backend. The sqlite backend prunes
// drafts untouched for longer than the retention window on start.
func ProvideKeyValue(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (storage.KeyValue, error) {
	if cfg.DraftBackend == config.DraftBackendMemory {
		logger.Warn().Msg("drafts are kept in memory and will not survive a restart")
		return storage.NewMemory(), nil
	}

	sqlDB, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	repo := repository.NewDraftEntryRepository(sqlDB, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := repo.Prune(ctx, time.Now().Add(-constants.DraftRetention)); err != nil {
				logger.Warn().Err(err).Msg("failed to prune stale drafts")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := sqlDB.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
	return repo, nil
}

func ProvideDraftStore(lc fx.Lifecycle, kv storage.KeyValue, bus *events.Bus, cfg *config.Config, logger zerolog.Logger) *draft.Store {
	store := draft.NewStore(kv, bus, cfg.DraftDebounce, logger.With().Str("component", "drafts").Logger())
	lc.Append(fx.StopHook(store.Close))
	return store
}

func ProvidePicker(lc fx.Lifecycle, lookup picker.UserLookup, bus *events.Bus, cfg *config.Config, logger zerolog.Logger) *picker.Picker {
	p := picker.New(lookup, bus, cfg.SearchDebounce, logger.With().Str("component", "picker").Logger())
	lc.Append(fx.StopHook(p.Close))
	return p
}

func importOptions(cfg *config.Config) service.ImportOptions {
	return service.ImportOptions{ConfirmTransition: cfg.ConfirmTransition}
}

func asImportAPI(c *api.AdminClient) service.ImportAPI { return c }

func asPayoutAPI(c *api.AdminClient) service.PayoutAPI { return c }

func asAdminAPI(c *api.AdminClient) service.AdminAPI { return c }

func asUserLookup(c *api.AdminClient) picker.UserLookup { return c }

var Module = fx.Options(
	logger.Module,
	config.Module,
	// storage
	fx.Provide(ProvideKeyValue),
	fx.Provide(events.NewBus),
	fx.Provide(ProvideDraftStore),
	// api client
	fx.Provide(api.NewAdminClient),
	fx.Provide(asImportAPI, asPayoutAPI, asAdminAPI, asUserLookup),
	fx.Provide(ProvidePicker),
	// svc
	fx.Provide(importOptions),
	fx.Provide(service.NewImportService),
	fx.Provide(service.NewPayoutService),
	fx.Provide(service.NewAdminService),
	// server
	fx.Provide(server.NewWorkflowServer),
	fx.Provide(server.NewHTTPHandlers),
)
