package hnsw

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nexusdb/nexus/pkg/val"
)

// ConditionChecker filters Search candidates by an out-of-band
// predicate, spec §4.6's "condition pushdown": a caller supplies one so
// a KNN search only returns records that would also satisfy the
// query's WHERE clause, without the executor re-running the full
// search over every candidate that fails it.
type ConditionChecker interface {
	Check(id val.RecordIdKey) (bool, error)
}

// TrivialChecker accepts every candidate — the "no pushdown condition"
// mode.
type TrivialChecker struct{}

func (TrivialChecker) Check(val.RecordIdKey) (bool, error) { return true, nil }

// CachedChecker evaluates Predicate at most once per record id while a
// verdict stays in its LRU. Search uses whatever checker its caller
// passes and never builds one itself, so the cache lives as long as the
// CachedChecker does: one passed to several queries carries its
// verdicts from one to the next.
type CachedChecker struct {
	Predicate func(val.RecordIdKey) (bool, error)
	cache     *lru.Cache[string, bool]
}

// NewCachedChecker builds a CachedChecker bounded to size entries —
// callers size it to their candidate budget (e.g. ef), since a query
// never evaluates more distinct ids than it visits during search.
func NewCachedChecker(size int, predicate func(val.RecordIdKey) (bool, error)) (*CachedChecker, error) {
	c, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}
	return &CachedChecker{Predicate: predicate, cache: c}, nil
}

func (c *CachedChecker) Check(id val.RecordIdKey) (bool, error) {
	key := id.String()
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.Predicate(id)
	if err != nil {
		return false, err
	}
	c.cache.Add(key, v)
	return v, nil
}
