package catalog

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
)

// Store resolves catalog entities by name against a transaction,
// reading through Cache first and populating it on miss — the
// "cached schema view whose coherency rides on the underlying KV's
// snapshot isolation" spec §3.4 and this package's doc comment
// describe. Cache alone never touches a kv.Tx; Store is what a
// statement executor actually calls.
type Store struct {
	Cache *Cache
}

func NewStore(cache *Cache) *Store { return &Store{Cache: cache} }

// Namespace reads the root-scoped namespace entity named name.
func (s *Store) Namespace(tx kv.Tx, name string) (Namespace, error) {
	b, ok, err := tx.Get(keys.NamespaceKey(name))
	if err != nil {
		return Namespace{}, err
	}
	if !ok {
		return Namespace{}, xerrors.New(xerrors.KindNsNotFound, "catalog: namespace "+name+" not found")
	}
	return DecodeNamespace(b)
}

// Database reads the database entity named name within ns.
func (s *Store) Database(tx kv.Tx, ns, name string) (Database, error) {
	b, ok, err := tx.Get(keys.NamespaceDatabaseKey(ns, name))
	if err != nil {
		return Database{}, err
	}
	if !ok {
		return Database{}, xerrors.New(xerrors.KindDbNotFound, "catalog: database "+name+" not found")
	}
	return DecodeDatabase(b)
}

// Scope resolves ns/db names to the numeric ids Cache keys entities by.
// Every Table/Field/Index/Access lookup below needs this pair first.
func (s *Store) Scope(tx kv.Tx, ns, db string) (nsID, dbID uint32, err error) {
	n, err := s.Namespace(tx, ns)
	if err != nil {
		return 0, 0, err
	}
	d, err := s.Database(tx, ns, db)
	if err != nil {
		return 0, 0, err
	}
	return n.NamespaceID, d.DatabaseID, nil
}

// Table resolves a database-scoped table by name, reading through Cache.
func (s *Store) Table(tx kv.Tx, ns, db string, nsID, dbID uint32, name string) (Table, error) {
	if t, ok := s.Cache.Table(nsID, dbID, name); ok {
		return t, nil
	}
	b, ok, err := tx.Get(keys.DatabaseEntityKey(ns, db, keys.CategoryTable, name))
	if err != nil {
		return Table{}, err
	}
	if !ok {
		return Table{}, xerrors.New(xerrors.KindTbNotFound, "catalog: table "+name+" not found")
	}
	t, err := DecodeTable(b)
	if err != nil {
		return Table{}, err
	}
	s.Cache.PutTable(nsID, dbID, t)
	return t, nil
}

// Field resolves one table-scoped field by its dotted name.
func (s *Store) Field(tx kv.Tx, ns, db, table string, nsID, dbID uint32, name string) (Field, error) {
	if f, ok := s.Cache.Field(nsID, dbID, table, name); ok {
		return f, nil
	}
	b, ok, err := tx.Get(keys.TableEntityKey(ns, db, table, keys.CategoryField, name))
	if err != nil {
		return Field{}, err
	}
	if !ok {
		return Field{}, xerrors.New(xerrors.KindFieldNotFound, "catalog: field "+name+" not found")
	}
	f, err := DecodeField(b)
	if err != nil {
		return Field{}, err
	}
	s.Cache.PutField(nsID, dbID, table, f)
	return f, nil
}

// Fields lists every field defined on table, scanning rather than
// going through Cache (Cache has no "list all" index and a full field
// list is only needed by the permission/COMPUTED pipeline, not the hot
// per-record path Table/Field serve).
func (s *Store) Fields(tx kv.Tx, ns, db, table string) ([]Field, error) {
	prefix := keys.TableEntityPrefix(ns, db, table, keys.CategoryField)
	begin, end := keys.RangeOf(prefix)
	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, 0, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Field, 0, len(kvs))
	for _, kve := range kvs {
		f, err := DecodeField(kve.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Index resolves one named secondary index on table.
func (s *Store) Index(tx kv.Tx, ns, db, table string, nsID, dbID uint32, name string) (Index, error) {
	if idx, ok := s.Cache.Index(nsID, dbID, table, name); ok {
		return idx, nil
	}
	b, ok, err := tx.Get(keys.TableEntityKey(ns, db, table, keys.CategoryIndex, name))
	if err != nil {
		return Index{}, err
	}
	if !ok {
		return Index{}, xerrors.New(xerrors.KindIxNotFound, "catalog: index "+name+" not found")
	}
	idx, err := DecodeIndex(b)
	if err != nil {
		return Index{}, err
	}
	s.Cache.PutIndex(nsID, dbID, table, idx)
	return idx, nil
}

// Indexes lists every secondary index defined on table — what
// pkg/plan.Plan's access-path selection needs for one table.
func (s *Store) Indexes(tx kv.Tx, ns, db, table string) ([]Index, error) {
	prefix := keys.TableEntityPrefix(ns, db, table, keys.CategoryIndex)
	begin, end := keys.RangeOf(prefix)
	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, 0, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Index, 0, len(kvs))
	for _, kve := range kvs {
		idx, err := DecodeIndex(kve.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// Access resolves a namespace- or database-scoped JWT/record
// authenticator by name.
func (s *Store) Access(tx kv.Tx, ns, db string, nsID, dbID uint32, name string) (Access, error) {
	if a, ok := s.Cache.Access(nsID, dbID, name); ok {
		return a, nil
	}
	b, ok, err := tx.Get(keys.DatabaseEntityKey(ns, db, keys.CategoryAccess, name))
	if err != nil {
		return Access{}, err
	}
	if !ok {
		return Access{}, xerrors.New(xerrors.KindIdNotFound, "catalog: access "+name+" not found")
	}
	a, err := DecodeAccess(b)
	if err != nil {
		return Access{}, err
	}
	s.Cache.PutAccess(nsID, dbID, a)
	return a, nil
}

// User resolves a database-scoped authentication principal by name.
func (s *Store) User(tx kv.Tx, ns, db, name string) (User, error) {
	b, ok, err := tx.Get(keys.DatabaseEntityKey(ns, db, keys.CategoryUser, name))
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, xerrors.New(xerrors.KindIdNotFound, "catalog: user "+name+" not found")
	}
	return DecodeUser(b)
}
