// Package catalog defines the remote catalog surface the traversal engine
// consumes and the snapshot it walks.
package catalog

import (
	"context"
	"sort"
	"strings"

	errs "docharvest/pkg/errors"
)

// ExpandResult is returned by Surface.Expand.
type ExpandResult struct {
	MoreAvailable bool
}

// Surface exposes a catalog as a list of entries that can each trigger a
// download. Positions are 0-based and stable across expansion.
type Surface interface {
	ListPositions(ctx context.Context) ([]int, error)
	// TitlesByPosition may omit positions whose title could not be read.
	TitlesByPosition(ctx context.Context) (map[int]string, error)
	TriggerDownload(ctx context.Context, position int) error
	Expand(ctx context.Context) (ExpandResult, error)
}

// Snapshot is the ordered set of positions currently known plus their
// titles. It is replaced wholesale on every expansion.
type Snapshot struct {
	Positions []int
	Titles    map[int]string
}

// Len returns the number of known positions.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Positions)
}

// At returns the position stored at index i.
func (s *Snapshot) At(i int) int {
	return s.Positions[i]
}

// Title returns the display title for position, if one was resolved.
func (s *Snapshot) Title(position int) (string, bool) {
	if s == nil || s.Titles == nil {
		return "", false
	}
	t, ok := s.Titles[position]
	return t, ok
}

// LoadSnapshot reads positions and titles from s. Failing to list positions
// is a catalog_unavailable error. Failing to read titles only degrades the
// snapshot to an empty title map.
func LoadSnapshot(ctx context.Context, s Surface) (*Snapshot, error) {
	positions, err := s.ListPositions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.NewCatalogUnavailable("list positions", err)
	}

	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)

	titles, err := s.TitlesByPosition(ctx)
	if err != nil || titles == nil {
		titles = map[int]string{}
	}

	return &Snapshot{Positions: sorted, Titles: titles}, nil
}

// CleanTitle trims whitespace and removes the first matching prefix.
func CleanTitle(raw string, stripPrefixes []string) string {
	title := strings.TrimSpace(raw)
	for _, prefix := range stripPrefixes {
		if prefix != "" && strings.HasPrefix(title, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(title, prefix))
		}
	}
	return title
}
