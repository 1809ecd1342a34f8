package domain

import (
	"sort"
	"time"
)

const (
	exerciseStride = time.Second
	setStride      = 10 * time.Millisecond

	// Synthesized timestamps stay strictly ordered only below these bounds.
	maxSetsPerExercise     = 100
	maxExercisesPerSession = 1000
)

// SynthesizeSetTime returns base + exercise·1000ms + set·10ms.
func SynthesizeSetTime(base time.Time, exercise, set int) time.Time {
	return base.Add(time.Duration(exercise)*exerciseStride + time.Duration(set)*setStride)
}

// exceedsOrderingBudget reports whether synthesized timestamps may interleave.
func exceedsOrderingBudget(exercises []ExerciseInput) bool {
	if len(exercises) >= maxExercisesPerSession {
		return true
	}
	for _, ex := range exercises {
		if len(ex.Sets) >= maxSetsPerExercise {
			return true
		}
	}
	return false
}

// GroupSets assembles the exercises-in-context of one session. Exercises are
// ordered by their lowest exercise position, then by earliest set time, and
// sets inside each exercise by set index. Sets whose exercise is missing from
// catalog are dropped.
func GroupSets(sets []Set, catalog map[string]Exercise) []SessionExercise {
	ordered := make([]Set, len(sets))
	copy(ordered, sets)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.ExercisePosition != b.ExercisePosition {
			return a.ExercisePosition < b.ExercisePosition
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.SetIndex < b.SetIndex
	})

	index := make(map[string]int)
	out := make([]SessionExercise, 0)
	for _, set := range ordered {
		pos, ok := index[set.ExerciseID]
		if !ok {
			ex, known := catalog[set.ExerciseID]
			if !known {
				continue
			}
			out = append(out, SessionExercise{Exercise: ex, Position: set.ExercisePosition})
			pos = len(out) - 1
			index[set.ExerciseID] = pos
		}
		out[pos].Sets = append(out[pos].Sets, set)
	}
	for i := range out {
		sortSets(out[i].Sets)
	}
	return out
}

func sortSets(sets []Set) {
	sort.SliceStable(sets, func(i, j int) bool { return sets[i].SetIndex < sets[j].SetIndex })
}
