package catalog

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nexusdb/nexus/internal/xerrors"
)

// Cache is the schema view spec.md §3.4 describes: "Read access uses a
// cached schema view whose coherency is guaranteed by the underlying
// KV's read snapshot." It holds decoded entities keyed by their lookup
// path so a hot query path (planner resolving a table/field/index on
// every statement) skips the KV get + JSON decode round trip; a
// transaction's own snapshot isolation is what keeps a cached entry
// from going stale mid-transaction, not any invalidation logic here —
// Invalidate is only ever called by Store's Remove* methods, inside the
// REMOVE statement's own transaction.
type Cache struct {
	tables   *lru.Cache[tableKey, Table]
	fields   *lru.Cache[fieldKey, Field]
	indexes  *lru.Cache[indexKey, Index]
	accesses *lru.Cache[nameKey, Access]
}

type tableKey struct {
	NamespaceID, DatabaseID uint32
	Table                   string
}

type fieldKey struct {
	tableKey
	Field string
}

type indexKey struct {
	tableKey
	Index string
}

type nameKey struct {
	NamespaceID, DatabaseID uint32
	Name                    string
}

// NewCache builds a schema cache holding up to size entries per entity
// kind. size mirrors the teacher's fixed-capacity LRU sizing convention
// rather than a byte budget: schema entities are small and bounded by
// how many tables/fields/indexes/accesses a database actually defines.
func NewCache(size int) (*Cache, error) {
	tables, err := lru.New[tableKey, Table](size)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "catalog: new table cache", err)
	}
	fields, err := lru.New[fieldKey, Field](size)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "catalog: new field cache", err)
	}
	indexes, err := lru.New[indexKey, Index](size)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "catalog: new index cache", err)
	}
	accesses, err := lru.New[nameKey, Access](size)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "catalog: new access cache", err)
	}
	return &Cache{tables: tables, fields: fields, indexes: indexes, accesses: accesses}, nil
}

func (c *Cache) Table(nsID, dbID uint32, name string) (Table, bool) {
	return c.tables.Get(tableKey{nsID, dbID, name})
}

func (c *Cache) PutTable(nsID, dbID uint32, t Table) {
	c.tables.Add(tableKey{nsID, dbID, t.Name}, t)
}

func (c *Cache) Field(nsID, dbID uint32, table, field string) (Field, bool) {
	return c.fields.Get(fieldKey{tableKey{nsID, dbID, table}, field})
}

func (c *Cache) PutField(nsID, dbID uint32, table string, f Field) {
	c.fields.Add(fieldKey{tableKey{nsID, dbID, table}, f.Name.String()}, f)
}

func (c *Cache) Index(nsID, dbID uint32, table, index string) (Index, bool) {
	return c.indexes.Get(indexKey{tableKey{nsID, dbID, table}, index})
}

func (c *Cache) PutIndex(nsID, dbID uint32, table string, idx Index) {
	c.indexes.Add(indexKey{tableKey{nsID, dbID, table}, idx.Name}, idx)
}

func (c *Cache) Access(nsID, dbID uint32, name string) (Access, bool) {
	return c.accesses.Get(nameKey{nsID, dbID, name})
}

func (c *Cache) PutAccess(nsID, dbID uint32, a Access) {
	c.accesses.Add(nameKey{nsID, dbID, a.Name}, a)
}

// InvalidateTable drops a table and everything scoped under it (fields,
// indexes); called by Store.RemoveTable, RemoveField and RemoveIndex,
// never by a reader.
func (c *Cache) InvalidateTable(nsID, dbID uint32, table string) {
	c.tables.Remove(tableKey{nsID, dbID, table})
	for _, k := range c.fields.Keys() {
		if k.tableKey == (tableKey{nsID, dbID, table}) {
			c.fields.Remove(k)
		}
	}
	for _, k := range c.indexes.Keys() {
		if k.tableKey == (tableKey{nsID, dbID, table}) {
			c.indexes.Remove(k)
		}
	}
}

func (c *Cache) InvalidateAccess(nsID, dbID uint32, name string) {
	c.accesses.Remove(nameKey{nsID, dbID, name})
}
