package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"leaffliction/internal/analysis"
	"leaffliction/internal/augment"
	"leaffliction/internal/balance"
	"leaffliction/internal/config"
	"leaffliction/internal/dataset"
	"leaffliction/internal/logger"
	"leaffliction/internal/models"
	"leaffliction/internal/pipeline"
	"leaffliction/internal/shutdown"
)

var errUsage = errors.New("usage")

// app wires the components shared by every command.
type app struct {
	cfg         *config.Config
	logger      logger.Logger
	matcher     dataset.Matcher
	registry    *augment.Registry
	analyzer    *analysis.Analyzer
	loader      pipeline.ImageLoader
	saver       pipeline.ImageSaver
	executor    *pipeline.Executor
	balancer    *balance.Balancer
	transformer *pipeline.Transformer
	shutdown    *shutdown.Manager
}

func newApp(cfg *config.Config, log logger.Logger, manager *shutdown.Manager) (*app, error) {
	augmentParams, err := cfg.AugmentParams()
	if err != nil {
		return nil, err
	}
	registry, err := augment.NewRegistry(augmentParams)
	if err != nil {
		return nil, fmt.Errorf("operator registry: %w", err)
	}

	analysisParams, err := cfg.AnalysisParams()
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(analysisParams)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   log,
		matcher:  dataset.NewMatcher(cfg.Dataset.Extensions),
		registry: registry,
		analyzer: analyzer,
		loader:   pipeline.NewLoader(log),
		saver:    pipeline.NewSaver(log),
		executor: pipeline.NewExecutor(cfg.Processing.Workers, log),
		shutdown: manager,
	}
	a.balancer = balance.NewBalancer(a.registry, a.loader, a.saver, a.executor, log)
	a.transformer = pipeline.NewTransformer(a.analyzer, a.loader, a.saver, a.executor, a.matcher, log,
		pipeline.TransformerConfig{
			OutputExt:  cfg.Output.Extension,
			PlotWidth:  cfg.Plot.Width,
			PlotHeight: cfg.Plot.Height,
		})

	return a, nil
}

func newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: leaffliction %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func (a *app) distribution(ctx context.Context, args []string) error {
	fs := newFlagSet("distribution", "<dir>")
	chart := fs.String("chart", "", "Write a bar chart of the class counts to this image file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	collection, err := dataset.Scan(fs.Arg(0), a.matcher)
	if err != nil {
		return err
	}
	dist := dataset.Distribute(collection)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tIMAGES\tPERCENT")
	for _, c := range dist.Classes {
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", c.RelPath, c.Count, c.Percent)
	}
	fmt.Fprintf(w, "total\t%d\t\n", dist.Total)
	if err := w.Flush(); err != nil {
		return err
	}

	if *chart == "" {
		return nil
	}

	img, err := dist.Render(a.cfg.Plot.Width, a.cfg.Plot.Height)
	if err != nil {
		return fmt.Errorf("render distribution: %w", err)
	}
	defer img.Close()

	if err := a.saver.SaveToPath(*chart, img); err != nil {
		return err
	}
	fmt.Printf("Chart written to %s\n", *chart)
	return ctx.Err()
}

func (a *app) augment(ctx context.Context, args []string) error {
	fs := newFlagSet("augment", "<file|dir>")
	dst := fs.String("dst", "", "Copy the input here first and augment the copy")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	src := fs.Arg(0)

	info, err := os.Stat(src)
	if err != nil {
		return models.InvalidPath("augment", src, err)
	}

	if !info.IsDir() {
		return a.augmentFile(ctx, src, *dst)
	}

	root := src
	if *dst != "" {
		root = *dst
	}
	a.removePartialsOnExit(root)

	if root != src {
		if err := balance.CopyTree(src, root); err != nil {
			return err
		}
	}

	collection, err := dataset.Scan(root, a.matcher)
	if err != nil {
		return err
	}
	plan, err := balance.NewPlan(collection, a.registry)
	if err != nil {
		return err
	}

	report, err := a.balancer.Run(ctx, plan)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tORIGINAL\tGENERATED\tTOTAL")
	for _, c := range report.Classes {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", c.Label, c.Original, c.Generated, c.Original+c.Generated)
	}
	return w.Flush()
}

func (a *app) augmentFile(ctx context.Context, src, dst string) error {
	target := src
	if dst != "" {
		target = filepath.Join(dst, filepath.Base(src))
	}
	a.removePartialsOnExit(filepath.Dir(target))

	if target != src {
		if err := balance.CopyFile(src, target); err != nil {
			return err
		}
	}

	outputs, err := a.balancer.AugmentFile(ctx, target)
	for _, out := range outputs {
		fmt.Println(out)
	}
	return err
}

func (a *app) transform(ctx context.Context, args []string) error {
	fs := newFlagSet("transform", "")
	src := fs.String("src", "", "Source image or flat directory of images")
	dst := fs.String("dst", "", "Destination directory")
	opsFlag := fs.String("ops", "", "Comma-separated operations (default: all of "+strings.Join(operationKeys(), ",")+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *src == "" || *dst == "" || fs.NArg() != 0 {
		fs.Usage()
		return errUsage
	}

	ops := pipeline.Operations()
	if *opsFlag != "" {
		var err error
		ops, err = pipeline.LookupOperations(strings.Split(*opsFlag, ","))
		if err != nil {
			return err
		}
	}

	a.removePartialsOnExit(*dst)
	result, err := a.transformer.Transform(ctx, *src, *dst, ops)
	if result != nil {
		for _, f := range result.Files {
			if f.Err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", f.Source, f.Err)
			}
		}
		fmt.Printf("Transformed %d images, %d with errors\n", len(result.Files), result.Failed())
		if err == nil && result.Failed() > 0 {
			err = fmt.Errorf("%d of %d images failed", result.Failed(), len(result.Files))
		}
	}
	return err
}

func operationKeys() []string {
	var keys []string
	for _, op := range pipeline.Operations() {
		keys = append(keys, op.Key)
	}
	return keys
}

// removePartialsOnExit makes shutdown delete temporaries an interrupted
// write left under root.
func (a *app) removePartialsOnExit(root string) {
	a.shutdown.Register("remove partial files "+root, func(context.Context) error {
		n, err := pipeline.RemovePartials(root)
		if n > 0 {
			a.logger.Info("Main", "removed partial files", map[string]interface{}{
				"root":    root,
				"removed": n,
			})
		}
		return err
	})
}
