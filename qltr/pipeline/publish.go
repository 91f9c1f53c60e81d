package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/export"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/trainer"
)

// Report is what a finished run hands back to the caller.
type Report struct {
	RunDir    string
	Metric    string
	TestScore float64
	ModelPath string
}

// Manifest describes result for the exporter.
func Manifest(result *Result) export.Manifest {
	return export.Manifest{
		RunID:        result.Stats.RunID,
		Experiment:   string(result.Stats.Experiment),
		CreatedAt:    time.Now().UTC(),
		GroupSize:    result.Dataset.GroupSize,
		FeatureNames: result.FeatureNames,
	}
}

// Publish exports the partitions, fits the trainer on train/validation,
// evaluates on test and saves the model as <modelDir>/<prefix><experiment><metric>.
func (p *Pipeline) Publish(ctx context.Context, result *Result, exporter *export.Exporter, t trainer.Trainer, modelDir, modelPrefix string) (report Report, err error) {
	ctx, finish := p.tracer.StartSpan(ctx, "pipeline.publish", map[string]any{"run_id": result.Stats.RunID})
	defer func() { finish(err) }()

	report.RunDir, err = exporter.Export(result.Split, Manifest(result))
	if err != nil {
		return Report{}, err
	}

	if err = t.Fit(ctx, result.Split.Train, result.Split.Validation); err != nil {
		return Report{}, fmt.Errorf("failed to fit ranker: %w", err)
	}
	report.Metric = t.Metric()
	report.TestScore, err = t.Evaluate(ctx, result.Split.Test)
	if err != nil {
		return Report{}, fmt.Errorf("failed to evaluate ranker: %w", err)
	}
	p.tracer.Event(ctx, "evaluation", map[string]any{"metric": report.Metric, "test_score": report.TestScore})

	report.ModelPath = filepath.Join(modelDir, modelPrefix+string(result.Stats.Experiment)+report.Metric)
	if err = t.Save(report.ModelPath); err != nil {
		return Report{}, fmt.Errorf("failed to save model: %w", err)
	}
	return report, nil
}
