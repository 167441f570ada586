package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketprep-backend/internal/feedback"
	"github.com/angelmondragon/marketprep-backend/internal/squaresync"
	"github.com/angelmondragon/marketprep-backend/pkg/bigquery"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/google/uuid"
)

const (
	JobSquareSync     = "square-sync"
	JobTrainingExport = "training-export"
	JobModelReload    = "model-reload"

	defaultExportBatch = 500
	// maxExportBatches bounds one tick; the backlog drains over later ticks.
	maxExportBatches = 20
)

type squareSyncer interface {
	SyncAll(ctx context.Context) ([]squaresync.Result, error)
}

// NewSquareSyncJob pulls catalog and sales for every linked vendor.
func NewSquareSyncJob(logg *logger.Logger, syncer squareSyncer) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if syncer == nil {
		return nil, fmt.Errorf("square sync service required")
	}
	return &squareSyncJob{logg: logg, syncer: syncer}, nil
}

type squareSyncJob struct {
	logg   *logger.Logger
	syncer squareSyncer
}

func (j *squareSyncJob) Name() string { return JobSquareSync }

func (j *squareSyncJob) Run(ctx context.Context) error {
	results, err := j.syncer.SyncAll(ctx)
	var imported, degraded int
	for _, r := range results {
		imported += r.SalesImported
		if r.Degraded {
			degraded++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"vendors":        len(results),
		"sales_imported": imported,
		"degraded":       degraded,
	}), "square sync pass finished")
	if err != nil {
		return fmt.Errorf("square sync: %w", err)
	}
	return nil
}

type systemScoper interface {
	SystemScope(ctx context.Context, fn func(ctx context.Context) error) error
}

type exportSource interface {
	ListUnexported(ctx context.Context, limit int) ([]feedback.ExportRow, error)
	MarkExported(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type warehouse interface {
	InsertTrainingRows(ctx context.Context, rows []bigquery.TrainingRow) error
}

// TrainingExportJobParams wires the feedback export to BigQuery.
type TrainingExportJobParams struct {
	Logger    *logger.Logger
	DB        systemScoper
	Source    exportSource
	Warehouse warehouse
	BatchSize int
}

// NewTrainingExportJob ships scored feedback to the training table. Rows are
// marked exported in the same transaction that read them, after the insert
// succeeds; BigQuery dedupes retried rows by feedback id.
func NewTrainingExportJob(params TrainingExportJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db required")
	case params.Source == nil:
		return nil, fmt.Errorf("feedback source required")
	case params.Warehouse == nil:
		return nil, fmt.Errorf("warehouse required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExportBatch
	}
	return &trainingExportJob{
		logg:      params.Logger,
		db:        params.DB,
		source:    params.Source,
		warehouse: params.Warehouse,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type trainingExportJob struct {
	logg      *logger.Logger
	db        systemScoper
	source    exportSource
	warehouse warehouse
	batch     int
	now       func() time.Time
}

func (j *trainingExportJob) Name() string { return JobTrainingExport }

func (j *trainingExportJob) Run(ctx context.Context) error {
	total := 0
	for i := 0; i < maxExportBatches; i++ {
		n, err := j.exportBatch(ctx)
		if err != nil {
			return fmt.Errorf("training export: %w", err)
		}
		total += n
		if n < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_exported", total), "training export complete")
	return nil
}

func (j *trainingExportJob) exportBatch(ctx context.Context) (int, error) {
	exported := 0
	err := j.db.SystemScope(ctx, func(ctx context.Context) error {
		rows, err := j.source.ListUnexported(ctx, j.batch)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		training := make([]bigquery.TrainingRow, 0, len(rows))
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			training = append(training, TrainingRowFor(row))
			ids = append(ids, row.Feedback.ID)
		}
		if err := j.warehouse.InsertTrainingRows(ctx, training); err != nil {
			return err
		}
		if err := j.source.MarkExported(ctx, ids, j.now().UTC()); err != nil {
			return err
		}
		exported = len(rows)
		return nil
	})
	return exported, err
}

// TrainingRowFor flattens one scored recommendation into a warehouse row.
func TrainingRowFor(row feedback.ExportRow) bigquery.TrainingRow {
	fb, rec := row.Feedback, row.Recommendation
	return bigquery.TrainingRow{
		FeedbackID:            fb.ID.String(),
		RecommendationID:      rec.ID.String(),
		VendorID:              rec.VendorID.String(),
		ProductID:             rec.ProductID.String(),
		VenueID:               rec.VenueID.String(),
		MarketDate:            rec.MarketDate.UTC().Format(time.DateOnly),
		FeatureSchemaVersion:  rec.FeatureSchema,
		Features:              rec.Features.Data(),
		ModelVersion:          rec.ModelVersion,
		RecommendedQuantity:   int64(rec.RecommendedQuantity),
		ActualQuantitySold:    int64(fb.ActualQuantitySold),
		ActualQuantityBrought: int64(fb.ActualQuantityBrought),
		VariancePercentage:    fb.VariancePercentage,
		Rating:                int64(fb.Rating),
		RecordedAt:            fb.CreatedAt.UTC(),
	}
}

type modelReloader interface {
	Enabled() bool
	Reload(ctx context.Context) (bool, error)
}

// NewModelReloadJob swaps in a new forest artifact when its revision changes.
func NewModelReloadJob(logg *logger.Logger, loader modelReloader) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if loader == nil {
		return nil, fmt.Errorf("model loader required")
	}
	return &modelReloadJob{logg: logg, loader: loader}, nil
}

type modelReloadJob struct {
	logg   *logger.Logger
	loader modelReloader
}

func (j *modelReloadJob) Name() string { return JobModelReload }

func (j *modelReloadJob) Run(ctx context.Context) error {
	if !j.loader.Enabled() {
		return nil
	}
	changed, err := j.loader.Reload(ctx)
	if err != nil {
		return fmt.Errorf("model reload: %w", err)
	}
	if changed {
		j.logg.Info(ctx, "model artifact reloaded")
	}
	return nil
}
