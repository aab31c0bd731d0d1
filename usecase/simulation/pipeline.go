package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/usecase/advance"
	"github.com/miniconomy2025/sumsang-phones/usecase/finance"
	"github.com/miniconomy2025/sumsang-phones/usecase/procurement"
	"github.com/miniconomy2025/sumsang-phones/usecase/production"
)

// Pruner trims call records that can no longer be replayed.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int, error)
}

// Report is what one daily run did.
type Report struct {
	Day       int                `json:"day"`
	Needs     []procurement.Need `json:"needs"`
	Plans     []production.Plan  `json:"plans"`
	Advances  []advance.Result   `json:"advances"`
	Repayment finance.Repayment  `json:"repayment"`
	Pruned    int                `json:"pruned"`
	Duration  time.Duration      `json:"duration"`
	Failures  map[string]string  `json:"failures,omitempty"`
}

// Pipeline is the once-per-day batch: procurement, production, advancement,
// then loan servicing. A failing phase never stops the later ones.
type Pipeline struct {
	procurement *procurement.UseCase
	production  *production.UseCase
	advance     *advance.UseCase
	finance     *finance.UseCase
	pruner      Pruner
	retention   time.Duration
	logger      *zap.Logger
}

func NewPipeline(
	procurementUC *procurement.UseCase,
	productionUC *production.UseCase,
	advanceUC *advance.UseCase,
	financeUC *finance.UseCase,
	pruner Pruner,
	retention time.Duration,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		procurement: procurementUC,
		production:  productionUC,
		advance:     advanceUC,
		finance:     financeUC,
		pruner:      pruner,
		retention:   retention,
		logger:      logger,
	}
}

// RunDay runs every phase for day. The returned error joins the failures of
// all phases.
func (p *Pipeline) RunDay(ctx context.Context, day int) (Report, error) {
	ctx = logger.ContextWithDay(ctx, day)
	log := logger.FromContext(ctx, p.logger)
	started := time.Now()
	report := Report{Day: day}

	var errs []error
	fail := func(phase string, err error) {
		if err == nil {
			return
		}
		if report.Failures == nil {
			report.Failures = make(map[string]string)
		}
		report.Failures[phase] = err.Error()
		errs = append(errs, fmt.Errorf("%s: %w", phase, err))
	}

	var err error
	report.Needs, err = p.procurement.Run(ctx, day)
	fail("procurement", err)

	report.Plans, err = p.production.Run(ctx, day)
	fail("production", err)

	report.Advances, err = p.advance.All(ctx, day)
	fail("advance", err)

	if p.finance != nil {
		report.Repayment, err = p.finance.ServiceLoan(ctx, day)
		fail("finance", err)
	}

	if p.pruner != nil {
		report.Pruned, err = p.pruner.Prune(ctx, p.retention)
		if err != nil {
			log.Warn("journal prune failed", zap.Error(err))
		}
	}

	report.Duration = time.Since(started)
	log.Info("daily pipeline finished",
		zap.Duration("duration", report.Duration),
		zap.Int("phase_failures", len(report.Failures)))
	return report, errors.Join(errs...)
}
