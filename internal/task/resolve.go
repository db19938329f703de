package task

// Link resolves the dependency at index depIdx of from.Steps[stepIdx] to
// point directly at to.Steps[toStep], and records the symmetric back-
// pointer on the target step. Keeping both sides of the edge behind one
// call is what keeps Invariant D2 ("dependents are symmetric") true by
// construction instead of by convention.
func Link(from *BuildTask, stepIdx, depIdx int, to *BuildTask, toStep int, strict bool) {
	from.Steps[stepIdx].ReplaceRequirement(depIdx, ResolvedDependency(to, toStep, strict))
	to.Steps[toStep].AddDependent(StepRef{Task: from, StepIndex: stepIdx})
}

// HasCycle reports whether starting a depth-first walk from (t, step)
// through Resolved dependencies ever returns to (t, step) itself. Link does
// not call it: a dependency that closes a cycle is still linked, and a
// cycle of strict dependencies is then left Blocked by the queue's sort.
func HasCycle(t *BuildTask, step int) bool {
	onStack := map[*BuildStep]bool{}
	done := map[*BuildStep]bool{}
	var walk func(s *BuildStep) bool
	walk = func(s *BuildStep) bool {
		if onStack[s] {
			return true
		}
		if done[s] {
			return false
		}
		onStack[s] = true
		for _, d := range s.Requires() {
			if d.Kind != DependencyResolved {
				continue
			}
			if walk(d.Resolved.Task.Steps[d.Resolved.StepIndex]) {
				return true
			}
		}
		onStack[s] = false
		done[s] = true
		return false
	}
	return walk(t.Steps[step])
}
