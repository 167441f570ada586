package app

import (
	"fmt"

	"github.com/angelmondragon/marketprep-backend/internal/cron"
)

// CronRegistry registers the jobs whose integrations are configured: Square
// sync needs the token cipher, training export needs BigQuery, and model
// reload needs a model path.
func (rt *Runtime) CronRegistry(svcs *Services) (*cron.Registry, error) {
	registry := cron.NewRegistry()

	if svcs.SquareSync != nil {
		job, err := cron.NewSquareSyncJob(rt.Logger, svcs.SquareSync)
		if err != nil {
			return nil, fmt.Errorf("square sync job: %w", err)
		}
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}

	if rt.BigQuery != nil {
		job, err := cron.NewTrainingExportJob(cron.TrainingExportJobParams{
			Logger:    rt.Logger,
			DB:        rt.DB,
			Source:    svcs.FeedbackRepo,
			Warehouse: rt.BigQuery,
			BatchSize: rt.Config.Cron.ExportBatch,
		})
		if err != nil {
			return nil, fmt.Errorf("training export job: %w", err)
		}
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}

	if rt.Models.Enabled() {
		job, err := cron.NewModelReloadJob(rt.Logger, rt.Models)
		if err != nil {
			return nil, fmt.Errorf("model reload job: %w", err)
		}
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
