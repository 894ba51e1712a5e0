package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
)

// Step is one feed's unit of work within a cycle.
type Step struct {
	Feed      feed.Feed
	DependsOn []feed.Feed
	Run       func(ctx context.Context) FeedReport
}

// Plan orders steps so that every step runs after the steps it depends on.
// Independent steps keep their declaration order. Duplicate feeds, unknown
// dependencies and dependency cycles are rejected.
func Plan(steps []Step) ([]Step, error) {
	index := make(map[feed.Feed]int, len(steps))
	for i, s := range steps {
		if _, dup := index[s.Feed]; dup {
			return nil, fmt.Errorf("feed %s is declared twice", s.Feed)
		}
		index[s.Feed] = i
	}

	pending := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, s := range steps {
		for _, dep := range s.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("feed %s depends on %s, which is not part of the plan", s.Feed, dep)
			}
			if j == i {
				return nil, fmt.Errorf("feed %s depends on itself", s.Feed)
			}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ordered := make([]Step, 0, len(steps))
	done := make([]bool, len(steps))
	for len(ordered) < len(steps) {
		next := -1
		for i := range steps {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, s := range steps {
				if !done[i] {
					stuck = append(stuck, string(s.Feed))
				}
			}
			return nil, fmt.Errorf("dependency cycle between feeds: %s", strings.Join(stuck, ", "))
		}
		done[next] = true
		ordered = append(ordered, steps[next])
		for _, d := range dependents[next] {
			pending[d]--
		}
	}
	return ordered, nil
}
