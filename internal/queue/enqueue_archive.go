package queue

import "github.com/FlexiFormal/FLAMS-sub003/internal/archive"

// EnqueueArchive walks a's source tree for every file detected as format
// and enqueues it, deferring per-file target matching and the dependency
// resolver to Enqueue. It returns the number of files queued.
func (q *Queue) EnqueueArchive(a *archive.Archive, format string, targets []string, staleOnly bool, resolve DependencyResolver) int {
	tree := a.Tree()
	var files []FileCandidate
	for _, f := range tree.Leaves() {
		if f.Format != format {
			continue
		}
		files = append(files, FileCandidate{RelPath: f.RelPath, States: f.States})
	}
	return q.Enqueue(a.ID(), format, targets, staleOnly, files, resolve)
}

// EnqueueGroup applies EnqueueArchive to every archive in g, summing the
// per-archive counts.
func (q *Queue) EnqueueGroup(g *archive.ArchiveGroup, format string, targets []string, staleOnly bool, resolve DependencyResolver) int {
	count := 0
	for _, a := range g.All() {
		count += q.EnqueueArchive(a, format, targets, staleOnly, resolve)
	}
	return count
}
