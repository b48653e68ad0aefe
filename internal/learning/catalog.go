/*
Package learning implements session-scoped next-tool recommendation.

A ConfidenceScorer turns graph co-occurrence into per-tool confidence scores
for the tool that just ran. A SessionRecommender folds each step's scores into
an exponentially decayed weight vector over the tool catalog and ranks the
catalog by that vector.
*/
package learning

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptyCatalog is returned when a recommender is built without tools.
var ErrEmptyCatalog = errors.New("tool catalog is empty")

// Catalog is the immutable, sorted set of tool ids a session can recommend.
type Catalog struct {
	ids   []string
	index map[string]struct{}
}

// NewCatalog validates ids and returns a catalog sorted by id.
// Empty and duplicate ids are rejected.
func NewCatalog(ids []string) (*Catalog, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		ids:   make([]string, 0, len(ids)),
		index: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		if id == "" {
			return nil, errors.New("tool catalog contains an empty id")
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("tool catalog contains duplicate id %q", id)
		}
		c.index[id] = struct{}{}
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)

	return c, nil
}

// Contains reports whether id is in the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Len returns the number of tools.
func (c *Catalog) Len() int { return len(c.ids) }

// IDs returns a copy of the sorted tool ids.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}
