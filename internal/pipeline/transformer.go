package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"leaffliction/internal/analysis"
	"leaffliction/internal/dataset"
	"leaffliction/internal/logger"
	"leaffliction/internal/models"
	"leaffliction/internal/segmentation"
)

type TransformerConfig struct {
	OutputExt  string
	PlotWidth  int
	PlotHeight int
}

// FileResult reports one source image. Err joins every per-operation
// failure; outputs of operations that succeeded are still listed.
type FileResult struct {
	Source  string
	Outputs []string
	Err     error
}

type BatchResult struct {
	Files []FileResult
}

func (b *BatchResult) Failed() int {
	n := 0
	for _, f := range b.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Transformer runs analysis operations over files and writes one image per
// operation into a destination directory.
type Transformer struct {
	analyzer *analysis.Analyzer
	loader   ImageLoader
	saver    ImageSaver
	executor *Executor
	matcher  dataset.Matcher
	logger   logger.Logger
	config   TransformerConfig
}

func NewTransformer(
	analyzer *analysis.Analyzer,
	loader ImageLoader,
	saver ImageSaver,
	executor *Executor,
	matcher dataset.Matcher,
	log logger.Logger,
	config TransformerConfig,
) *Transformer {
	if config.OutputExt == "" {
		config.OutputExt = "jpg"
	}
	return &Transformer{
		analyzer: analyzer,
		loader:   loader,
		saver:    saver,
		executor: executor,
		matcher:  matcher,
		logger:   log,
		config:   config,
	}
}

// Transform processes src, a single image or a directory of images, into
// dst. Discovery failures abort the call; per-image failures are reported
// in the result and do not stop other images.
func (t *Transformer) Transform(ctx context.Context, src, dst string, ops []Operation) (*BatchResult, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("no operations selected")
	}

	sources, err := t.listSources(src)
	if err != nil {
		return nil, err
	}

	numbers := outputNumbers(sources)
	result := &BatchResult{Files: make([]FileResult, len(sources))}
	tasks := make([]Task, len(sources))
	for i, path := range sources {
		i, path := i, path
		tasks[i] = Task{
			Name: path,
			Run: func(ctx context.Context) error {
				result.Files[i] = t.transformFile(ctx, path, dst, numbers[i], ops)
				return result.Files[i].Err
			},
		}
	}

	errs := t.executor.RunEach(ctx, tasks)
	for i, err := range errs {
		if result.Files[i].Source == "" {
			result.Files[i] = FileResult{Source: sources[i], Err: err}
		}
	}

	t.logger.Info("Transformer", "transformation finished", map[string]interface{}{
		"source": src,
		"files":  len(sources),
		"failed": result.Failed(),
	})

	return result, ctx.Err()
}

func (t *Transformer) listSources(src string) ([]string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, models.InvalidPath("Transform", src, err)
	}
	if !info.IsDir() {
		return []string{src}, nil
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, models.InvalidPath("Transform", src, err)
	}

	var sources []string
	for _, e := range entries {
		if !e.IsDir() && t.matcher.Match(e.Name()) {
			sources = append(sources, filepath.Join(src, e.Name()))
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// outputNumbers gives every source after the first with the same stem a
// distinct number k >= 2 so their outputs never share a path. Stems are
// compared case-insensitively. Unique stems get 0.
func outputNumbers(sources []string) []int {
	seen := make(map[string]int, len(sources))
	numbers := make([]int, len(sources))
	for i, path := range sources {
		base := filepath.Base(path)
		stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
		seen[stem]++
		if n := seen[stem]; n > 1 {
			numbers[i] = n
		}
	}
	return numbers
}

// OutputPath is where operation label writes for src inside dst. A k of 0
// or 1 yields <stem>_<label>.<ext>; larger k yields <stem>_<label>_<k>.<ext>.
func OutputPath(dst, src, label, ext string, k int) string {
	base := filepath.Join(dst, filepath.Base(src))
	if k > 1 {
		return WithExtension(NumberedName(base, label, k), ext)
	}
	return WithExtension(OutputName(base, label), ext)
}

// TransformFile segments one image and runs every operation on it.
func (t *Transformer) TransformFile(ctx context.Context, src, dst string, ops []Operation) FileResult {
	return t.transformFile(ctx, src, dst, 0, ops)
}

func (t *Transformer) transformFile(ctx context.Context, src, dst string, k int, ops []Operation) FileResult {
	res := FileResult{Source: src}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	img, err := t.loader.LoadFromPath(src)
	if err != nil {
		res.Err = err
		return res
	}
	defer img.Close()

	mask, err := segmentation.Segment(img.Mat)
	if err != nil {
		res.Err = models.WithPath(err, src)
		return res
	}
	defer mask.Close()

	if quality, err := segmentation.Assess(img.Mat, mask); err == nil {
		fields := quality.LogFields()
		fields["path"] = src
		t.logger.Debug("Transformer", "segmentation quality", fields)
	}
	t.logCloseEffect(src, mask)

	var errs []error
	for _, op := range ops {
		out, err := op.Run(t.analyzer, img.Mat, mask, t.config.PlotWidth, t.config.PlotHeight)
		if err != nil {
			errs = append(errs, models.WithPath(err, src))
			continue
		}

		target := OutputPath(dst, src, op.Label, t.config.OutputExt, k)
		err = t.saver.SaveToPath(target, out.Image)
		if out.Stats != nil {
			fields := out.Stats.LogFields()
			fields["path"] = src
			t.logger.Info("Transformer", "shape analysis", fields)
		}
		out.Close()

		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.Outputs = append(res.Outputs, target)
	}

	res.Err = errors.Join(errs...)
	return res
}

// logCloseEffect records how far the morphological close used by the
// analyzers moves the raw segmentation.
func (t *Transformer) logCloseEffect(src string, mask *segmentation.Mask) {
	closed, err := mask.MorphClose(t.analyzer.Params().CloseKernel)
	if err != nil {
		return
	}
	defer closed.Close()

	overlap, err := segmentation.Agreement(mask, closed)
	if err != nil {
		return
	}
	t.logger.Debug("Transformer", "mask close effect", map[string]interface{}{
		"path": src,
		"iou":  overlap.IoU,
		"dice": overlap.Dice,
	})
}
