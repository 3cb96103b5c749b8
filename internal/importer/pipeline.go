package importer

import (
	"context"

	metricsservice "github.com/loyaltylabs/loyalsync/internal/metrics/service"
	redemptionservice "github.com/loyaltylabs/loyalsync/internal/redemption/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pipeline is the full initial-import sequence: land upstream data, run the
// aggregation pass, refresh card-link bookkeeping, reconcile redemptions.
type Pipeline struct {
	log        *zap.Logger
	importer   *Importer
	metrics    *metricsservice.Service
	reconciler *redemptionservice.Reconciler
}

type PipelineParam struct {
	fx.In

	Log        *zap.Logger
	Importer   *Importer
	Metrics    *metricsservice.Service
	Reconciler *redemptionservice.Reconciler
}

func NewPipeline(p PipelineParam) *Pipeline {
	return &Pipeline{
		log:        p.Log.Named("importer.pipeline"),
		importer:   p.Importer,
		metrics:    p.Metrics,
		reconciler: p.Reconciler,
	}
}

func (p *Pipeline) RunInitialImport(ctx context.Context) error {
	if err := p.importer.ImportMembers(ctx); err != nil {
		return err
	}
	if err := p.importer.ImportCards(ctx); err != nil {
		return err
	}
	if err := p.importer.ImportTransactions(ctx); err != nil {
		return err
	}
	if err := p.metrics.RunMetrics(ctx, nil); err != nil {
		return err
	}
	if err := p.importer.SetCardLinkDates(ctx); err != nil {
		return err
	}
	return p.reconciler.Run(ctx)
}
