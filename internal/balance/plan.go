package balance

import (
	"path/filepath"

	"leaffliction/internal/augment"
	"leaffliction/internal/dataset"
	"leaffliction/internal/models"
	"leaffliction/internal/pipeline"
)

// Task generates one synthetic image. Index is the cycling counter that
// chose both the source file and the operator.
type Task struct {
	Class       string
	Index       int
	Deficit     int
	Source      string
	Operator    augment.Operator
	Destination string
}

type ClassPlan struct {
	Class   dataset.Class
	Deficit int
	Tasks   []Task
}

// Plan is the complete, precomputed set of writes needed to bring every
// class up to Target.
type Plan struct {
	Root    string
	Target  int
	Classes []ClassPlan
}

func (p *Plan) Tasks() []Task {
	var tasks []Task
	for _, c := range p.Classes {
		tasks = append(tasks, c.Tasks...)
	}
	return tasks
}

func (p *Plan) Deficit() int {
	total := 0
	for _, c := range p.Classes {
		total += c.Deficit
	}
	return total
}

// NewPlan sizes every class to the largest one. For a class of n files and
// deficit d, counter i runs from d down to 1 and picks files[i mod n] and
// operator i mod 7. Destinations never repeat and never hit an original.
func NewPlan(c *dataset.Collection, registry *augment.Registry) (*Plan, error) {
	if len(c.Classes) == 0 {
		return nil, models.EmptyClass("Plan", c.Root, "", map[string]interface{}{
			"classes": 0,
		})
	}

	target := 0
	for _, class := range c.Classes {
		if class.Size() == 0 {
			return nil, models.EmptyClass("Plan", class.Dir, class.Label, map[string]interface{}{
				"size": 0,
			})
		}
		if class.Size() > target {
			target = class.Size()
		}
	}

	plan := &Plan{Root: c.Root, Target: target}
	for _, class := range c.Classes {
		plan.Classes = append(plan.Classes, planClass(class, target, registry))
	}
	return plan, nil
}

func planClass(class dataset.Class, target int, registry *augment.Registry) ClassPlan {
	deficit := target - class.Size()
	cp := ClassPlan{Class: class, Deficit: deficit}
	if deficit == 0 {
		return cp
	}

	used := make(map[string]bool, class.Size()+deficit)
	for _, f := range class.Files {
		used[filepath.Join(class.Dir, f)] = true
	}

	n := class.Size()
	for i := deficit; i > 0; i-- {
		src := class.Path(class.Files[i%n])
		op := registry.At(i)

		dst := pipeline.OutputName(src, op.Name)
		for k := 2; used[dst]; k++ {
			dst = pipeline.NumberedName(src, op.Name, k)
		}
		used[dst] = true

		cp.Tasks = append(cp.Tasks, Task{
			Class:       class.Label,
			Index:       i,
			Deficit:     deficit,
			Source:      src,
			Operator:    op,
			Destination: dst,
		})
	}
	return cp
}
