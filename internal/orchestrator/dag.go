// Package orchestrator runs the sparkify DAG: staging, the fact load, the
// dimension loads and the data-quality check. Runs are executed by a
// Temporal workflow, or in-process by LocalRunner.
package orchestrator

import (
	"errors"
	"fmt"
)

var (
	ErrCycle       = errors.New("dag has a cycle")
	ErrUnknownTask = errors.New("unknown task")
)

// Task is a node of the DAG; Upstream lists the tasks that must succeed
// before it runs.
type Task struct {
	ID       string   `json:"id"`
	Upstream []string `json:"upstream,omitempty"`
}

type DAG struct {
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// Levels groups the tasks into layers that can run once every earlier
// layer has succeeded. Tasks keep their declaration order inside a layer.
func (d DAG) Levels() ([][]string, error) {
	indegree := make(map[string]int, len(d.Tasks))
	downstream := make(map[string][]string, len(d.Tasks))
	for _, t := range d.Tasks {
		if _, dup := indegree[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.ID)
		}
		indegree[t.ID] = 0
	}
	for _, t := range d.Tasks {
		for _, up := range t.Upstream {
			if _, ok := indegree[up]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownTask, t.ID, up)
			}
			indegree[t.ID]++
			downstream[up] = append(downstream[up], t.ID)
		}
	}

	var (
		levels [][]string
		done   int
	)
	ready := map[string]bool{}
	for _, t := range d.Tasks {
		if indegree[t.ID] == 0 {
			ready[t.ID] = true
		}
	}
	for len(ready) > 0 {
		var level []string
		for _, t := range d.Tasks {
			if ready[t.ID] {
				level = append(level, t.ID)
			}
		}
		ready = map[string]bool{}
		for _, id := range level {
			for _, down := range downstream[id] {
				indegree[down]--
				if indegree[down] == 0 {
					ready[down] = true
				}
			}
		}
		done += len(level)
		levels = append(levels, level)
	}

	if done != len(d.Tasks) {
		return nil, fmt.Errorf("%w: %s", ErrCycle, d.Name)
	}
	return levels, nil
}
