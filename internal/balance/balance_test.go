package balance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"leaffliction/internal/augment"
	"leaffliction/internal/dataset"
	"leaffliction/internal/logger"
	"leaffliction/internal/models"
	"leaffliction/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry(t *testing.T) *augment.Registry {
	t.Helper()

	r, err := augment.NewRegistry(augment.DefaultParams())
	require.NoError(t, err)
	return r
}

func fakeClass(dir, label string, n int) dataset.Class {
	files := make([]string, n)
	for i := range files {
		files[i] = fmt.Sprintf("img%04d.jpg", i)
	}
	return dataset.Class{Label: label, Dir: filepath.Join(dir, label), Files: files}
}

func writePNG(t *testing.T, path string, seed int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y*10 + seed), B: uint8(seed * 40), A: 255})
		}
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newBalancer(t *testing.T, workers int) *Balancer {
	t.Helper()

	log := logger.NewNop()
	return NewBalancer(registry(t), pipeline.NewLoader(log), pipeline.NewSaver(log),
		pipeline.NewExecutor(workers, log), log)
}

func TestPlanEqualisesClasses(t *testing.T) {
	c := &dataset.Collection{
		Root:    "root",
		Classes: []dataset.Class{fakeClass("root", "healthy", 120), fakeClass("root", "rot", 40)},
	}

	plan, err := NewPlan(c, registry(t))
	require.NoError(t, err)

	assert.Equal(t, 120, plan.Target)
	assert.Equal(t, 0, plan.Classes[0].Deficit)
	assert.Empty(t, plan.Classes[0].Tasks)
	assert.Equal(t, 80, plan.Classes[1].Deficit)
	assert.Len(t, plan.Classes[1].Tasks, 80)
	assert.Equal(t, 80, plan.Deficit())

	first := plan.Classes[1].Tasks[0]
	assert.Equal(t, 80, first.Index)
	assert.Equal(t, filepath.Join("root", "rot", "img0000.jpg"), first.Source)
	assert.Equal(t, "Contrast", first.Operator.Name)
	assert.Equal(t, filepath.Join("root", "rot", "img0000_Contrast.jpg"), first.Destination)

	last := plan.Classes[1].Tasks[79]
	assert.Equal(t, 1, last.Index)
	assert.Equal(t, filepath.Join("root", "rot", "img0001.jpg"), last.Source)
	assert.Equal(t, "Rotate", last.Operator.Name)
}

func TestPlanNamesAreInjective(t *testing.T) {
	class := fakeClass("root", "rot", 2)
	class.Files = append(class.Files, "img0000_Flip.jpg")
	c := &dataset.Collection{
		Root:    "root",
		Classes: []dataset.Class{fakeClass("root", "healthy", 60), class},
	}

	plan, err := NewPlan(c, registry(t))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, f := range class.Files {
		seen[class.Path(f)] = true
	}
	for _, task := range plan.Classes[1].Tasks {
		assert.False(t, seen[task.Destination], "duplicate destination %s", task.Destination)
		seen[task.Destination] = true
	}
	assert.Len(t, plan.Classes[1].Tasks, 57)
}

func TestPlanRejectsEmptyClass(t *testing.T) {
	c := &dataset.Collection{
		Root:    "root",
		Classes: []dataset.Class{fakeClass("root", "healthy", 3), fakeClass("root", "rot", 0)},
	}

	_, err := NewPlan(c, registry(t))
	require.True(t, errors.Is(err, models.ErrEmptyClass))

	var typed *models.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "rot", typed.Fields["class"])
	assert.Equal(t, filepath.Join("root", "rot"), typed.Path)

	_, err = NewPlan(&dataset.Collection{Root: "root"}, registry(t))
	assert.True(t, errors.Is(err, models.ErrEmptyClass))
}

func TestRunBalancesTree(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		writePNG(t, filepath.Join(root, "Apple_healthy", fmt.Sprintf("h%d.png", i)), i)
	}
	writePNG(t, filepath.Join(root, "Apple_rot", "r0.png"), 7)

	original, err := os.ReadFile(filepath.Join(root, "Apple_rot", "r0.png"))
	require.NoError(t, err)

	matcher := dataset.NewMatcher(nil)
	c, err := dataset.Scan(root, matcher)
	require.NoError(t, err)

	plan, err := NewPlan(c, registry(t))
	require.NoError(t, err)

	report, err := newBalancer(t, 2).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Target)
	assert.Equal(t, ClassReport{Label: "Apple_rot", Dir: filepath.Join(root, "Apple_rot"), Original: 1, Generated: 2}, report.Classes[1])

	after, err := dataset.Scan(root, matcher)
	require.NoError(t, err)
	for _, class := range after.Classes {
		assert.Equal(t, 3, class.Size(), class.Label)
	}
	assert.Equal(t, []string{"r0.png", "r0_Blur.png", "r0_Rotate.png"}, after.Classes[1].Files)

	unchanged, err := os.ReadFile(filepath.Join(root, "Apple_rot", "r0.png"))
	require.NoError(t, err)
	assert.Equal(t, original, unchanged)
}

func TestRunStopsOnUnreadableSource(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a", "x.png"), 1)
	writePNG(t, filepath.Join(root, "a", "y.png"), 2)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b", "broken.png"), []byte("nope"), 0o644))

	c, err := dataset.Scan(root, dataset.NewMatcher(nil))
	require.NoError(t, err)
	plan, err := NewPlan(c, registry(t))
	require.NoError(t, err)

	_, err = newBalancer(t, 1).Run(context.Background(), plan)
	assert.True(t, errors.Is(err, models.ErrUnsupportedImage))
	assert.NoFileExists(t, filepath.Join(root, "b", "broken_Rotate.png"))

	var typed *models.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "b", typed.Fields["class"])
	assert.Equal(t, 1, typed.Fields["deficit"])
	assert.Equal(t, 1, typed.Fields["index"])
	assert.Equal(t, "Rotate", typed.Fields["operator"])
}

func TestAugmentFileWritesEveryOperator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaf.png")
	writePNG(t, path, 3)

	outputs, err := newBalancer(t, 1).AugmentFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outputs, 7)

	for _, name := range registry(t).Names() {
		assert.FileExists(t, pipeline.OutputName(path, name))
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	writePNG(t, filepath.Join(src, "a", "x.png"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyTree(src, dst))
	require.NoError(t, CopyTree(src, dst), "existing destination is allowed")

	assert.FileExists(t, filepath.Join(dst, "a", "x.png"))
	assert.NoFileExists(t, filepath.Join(dst, "a", ".hidden"))
	assert.DirExists(t, filepath.Join(dst, "empty"))

	err := CopyTree(src, filepath.Join(src, "inner"))
	assert.True(t, errors.Is(err, models.ErrInvalidPath))

	err = CopyTree(src, filepath.Join(src, "..cache"))
	assert.True(t, errors.Is(err, models.ErrInvalidPath), "dot-prefixed child is still inside")

	err = CopyTree(src, src)
	assert.True(t, errors.Is(err, models.ErrInvalidPath))

	err = CopyTree(filepath.Join(src, "missing"), dst)
	assert.True(t, errors.Is(err, models.ErrInvalidPath))
}
