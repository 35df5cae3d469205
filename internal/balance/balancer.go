package balance

import (
	"context"
	"fmt"

	"leaffliction/internal/augment"
	"leaffliction/internal/logger"
	"leaffliction/internal/models"
	"leaffliction/internal/pipeline"
)

type ClassReport struct {
	Label     string
	Dir       string
	Original  int
	Generated int
}

type Report struct {
	Target  int
	Classes []ClassReport
}

// Balancer executes plans and single-image augmentation.
type Balancer struct {
	registry *augment.Registry
	loader   pipeline.ImageLoader
	saver    pipeline.ImageSaver
	executor *pipeline.Executor
	logger   logger.Logger
}

func NewBalancer(
	registry *augment.Registry,
	loader pipeline.ImageLoader,
	saver pipeline.ImageSaver,
	executor *pipeline.Executor,
	log logger.Logger,
) *Balancer {
	return &Balancer{
		registry: registry,
		loader:   loader,
		saver:    saver,
		executor: executor,
		logger:   log,
	}
}

// Run writes every planned image. The first failure cancels the remaining
// tasks and is returned without retry; files already written stay in place.
func (b *Balancer) Run(ctx context.Context, plan *Plan) (*Report, error) {
	planned := plan.Tasks()

	b.logger.Info("Balancer", "balancing started", map[string]interface{}{
		"root":    plan.Root,
		"target":  plan.Target,
		"classes": len(plan.Classes),
		"deficit": len(planned),
		"workers": b.executor.Workers(),
	})

	tasks := make([]pipeline.Task, len(planned))
	for i, t := range planned {
		t := t
		tasks[i] = pipeline.Task{
			Name: t.Destination,
			Run: func(ctx context.Context) error {
				return b.generate(ctx, t)
			},
		}
	}

	if err := b.executor.RunAll(ctx, tasks); err != nil {
		return nil, err
	}

	report := &Report{Target: plan.Target}
	for _, c := range plan.Classes {
		report.Classes = append(report.Classes, ClassReport{
			Label:     c.Class.Label,
			Dir:       c.Class.Dir,
			Original:  c.Class.Size(),
			Generated: len(c.Tasks),
		})

		b.logger.Info("Balancer", "class balanced", map[string]interface{}{
			"class":     c.Class.Label,
			"original":  c.Class.Size(),
			"generated": len(c.Tasks),
			"target":    plan.Target,
		})
	}

	return report, nil
}

// generate writes one planned image. Typed failures carry the class and
// task position.
func (b *Balancer) generate(ctx context.Context, t Task) error {
	return models.WithFields(b.writeTask(ctx, t), map[string]interface{}{
		"class":       t.Class,
		"index":       t.Index,
		"deficit":     t.Deficit,
		"operator":    t.Operator.Name,
		"destination": t.Destination,
	})
}

func (b *Balancer) writeTask(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := b.loader.LoadFromPath(t.Source)
	if err != nil {
		return err
	}
	defer img.Close()

	out, err := t.Operator.Apply(img.Mat)
	if err != nil {
		if models.KindOf(err) == 0 {
			return fmt.Errorf("%s on %s: %w", t.Operator.Name, t.Source, err)
		}
		return models.WithPath(err, t.Source)
	}
	defer out.Close()

	return b.saver.SaveToPath(t.Destination, out)
}

// AugmentFile applies every operator to one image and writes the results
// beside it as <stem>_<Operator><ext>.
func (b *Balancer) AugmentFile(ctx context.Context, path string) ([]string, error) {
	img, err := b.loader.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	var outputs []string
	for _, op := range b.registry.Operators() {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}

		out, err := op.Apply(img.Mat)
		if err != nil {
			return outputs, fmt.Errorf("%s on %s: %w", op.Name, path, models.WithPath(err, path))
		}

		dst := pipeline.OutputName(path, op.Name)
		err = b.saver.SaveToPath(dst, out)
		out.Close()
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, dst)
	}

	b.logger.Info("Balancer", "image augmented", map[string]interface{}{
		"path":    path,
		"outputs": len(outputs),
	})

	return outputs, nil
}
