// Package planner decides, for a candidate video-id list and a target
// language, which videos still require a caption fetch. It is the piece
// that makes re-indexing a collection incremental: anything already
// attempted (successfully or not) is skipped.
package planner

import (
	"context"
	"fmt"
)

// Store is the subset of the persistent store the planner needs: a batched
// membership test over recorded fetch attempts.
type Store interface {
	AttemptedVideoIDs(ctx context.Context, ids []string, lang string) (map[string]struct{}, error)
}

// Planner filters candidate video ids against the store's availability rows.
type Planner struct {
	store Store
}

// New creates a planner backed by the given store.
func New(store Store) *Planner {
	return &Planner{store: store}
}

// Filter returns the candidates that still need indexing for lang, in input
// order with duplicates removed. A candidate is excluded when an
// availability row exists for (id, lang), or when the video has an
// unavailable row for any language at all (the negative cache suppresses
// the video across languages; see DESIGN.md).
func (p *Planner) Filter(ctx context.Context, ids []string, lang string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	attempted, err := p.store.AttemptedVideoIDs(ctx, ids, lang)
	if err != nil {
		return nil, fmt.Errorf("planner: membership test: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	needed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := attempted[id]; ok {
			continue
		}
		needed = append(needed, id)
	}
	return needed, nil
}
