package report

import (
	"fmt"
	"sort"
)

// Task is one stage of the analysis pipeline: pure configuration, no
// runtime state. DependsOn names earlier tasks whose output is assembled
// into this task's context.
type Task struct {
	Name      string   `yaml:"name"`
	Ordinal   int      `yaml:"ordinal"`
	DependsOn []string `yaml:"depends_on"`
	Prompt    string   `yaml:"prompt"`
}

// Catalog is the ordered task table, loaded once at startup and never
// mutated at runtime.
type Catalog []Task

// NewCatalog validates and orders the configured tasks. Names and ordinals
// must be unique; every dependency must name a task with a strictly lower
// ordinal, since a task can only consume output that exists by the time it
// runs.
func NewCatalog(tasks []Task) (Catalog, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("report: task catalog is empty")
	}

	sorted := make(Catalog, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })

	ordinals := make(map[int]string, len(sorted))
	byName := make(map[string]int, len(sorted))
	for _, t := range sorted {
		if t.Name == "" {
			return nil, fmt.Errorf("report: task with ordinal %d has no name", t.Ordinal)
		}
		if prev, ok := ordinals[t.Ordinal]; ok {
			return nil, fmt.Errorf("report: tasks %q and %q share ordinal %d", prev, t.Name, t.Ordinal)
		}
		ordinals[t.Ordinal] = t.Name
		if _, ok := byName[t.Name]; ok {
			return nil, fmt.Errorf("report: duplicate task name %q", t.Name)
		}
		byName[t.Name] = t.Ordinal
	}

	for _, t := range sorted {
		for _, dep := range t.DependsOn {
			depOrdinal, ok := byName[dep]
			if !ok {
				return nil, fmt.Errorf("report: task %q depends on unknown task %q", t.Name, dep)
			}
			if depOrdinal >= t.Ordinal {
				return nil, fmt.Errorf("report: task %q (ordinal %d) depends on %q (ordinal %d), which does not run before it",
					t.Name, t.Ordinal, dep, depOrdinal)
			}
		}
	}
	return sorted, nil
}

// Prompts returns the task-id → instruction map consumed by the analyzer.
func (c Catalog) Prompts() map[string]string {
	prompts := make(map[string]string, len(c))
	for _, t := range c {
		if t.Prompt != "" {
			prompts[t.Name] = t.Prompt
		}
	}
	return prompts
}
