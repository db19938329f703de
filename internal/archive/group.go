package archive

import "github.com/FlexiFormal/FLAMS-sub003/internal/uris"

// ArchiveGroup is a named collection of archives and nested sub-groups,
// supplementing the flat archive list with the hierarchical grouping the
// CLI's `--group G` selector needs (spec §6 CLI surface). A group's own meta
// archive, if any, is visited first by All.
type ArchiveGroup struct {
	id       uris.ArchiveId
	meta     *Archive
	children []groupEntry
}

type groupEntry struct {
	group   *ArchiveGroup
	archive *Archive
}

// NewArchiveGroup creates an empty group with the given id.
func NewArchiveGroup(id uris.ArchiveId) *ArchiveGroup {
	return &ArchiveGroup{id: id}
}

// ID returns the group's identifier.
func (g *ArchiveGroup) ID() uris.ArchiveId { return g.id }

// SetMeta installs a as the group's meta archive.
func (g *ArchiveGroup) SetMeta(a *Archive) { g.meta = a }

// Meta returns the group's meta archive, if any.
func (g *ArchiveGroup) Meta() *Archive { return g.meta }

// AddArchive adds a leaf archive to the group.
func (g *ArchiveGroup) AddArchive(a *Archive) {
	g.children = append(g.children, groupEntry{archive: a})
}

// AddGroup adds a nested sub-group to the group.
func (g *ArchiveGroup) AddGroup(sub *ArchiveGroup) {
	g.children = append(g.children, groupEntry{group: sub})
}

// NumArchives returns the total number of archives reachable from g,
// including nested groups' archives and meta archives.
func (g *ArchiveGroup) NumArchives() int { return len(g.All()) }

// All flattens the group (depth-first, meta archives first) into a slice of
// archives, mirroring the teacher's ArchiveGroupIter traversal order.
func (g *ArchiveGroup) All() []*Archive {
	var out []*Archive
	if g.meta != nil {
		out = append(out, g.meta)
	}
	for _, c := range g.children {
		if c.archive != nil {
			out = append(out, c.archive)
		}
		if c.group != nil {
			out = append(out, c.group.All()...)
		}
	}
	return out
}

// Find returns the archive with the given id anywhere in the group, if
// present.
func (g *ArchiveGroup) Find(id uris.ArchiveId) (*Archive, bool) {
	for _, a := range g.All() {
		if a.ID().Equal(id) {
			return a, true
		}
	}
	return nil, false
}
