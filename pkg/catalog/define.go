package catalog

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
)

// Define*/Remove* are the write side of Store (spec §3.4: "each entity
// is created via a DEFINE statement ... with overwrite semantics per
// revision flag ... removed by REMOVE"). Each Define writes
// tx.Set(key, entity.Encode()) at the exact key its read-side sibling
// above already reads from; each Remove issues tx.Delete at that key.
// For the cached kinds (table, field, index, access) a Define also
// refreshes Cache the same way the read path populates it on miss, and
// a Remove invalidates Cache; the other kinds never touch Cache. A DEFINE of a name that already exists
// overwrites in place rather than erroring, reusing the existing
// numeric id instead of allocating a new one — the "overwrite
// semantics" spec §3.4 calls for.

// nextID allocates a fresh id from the uint32 counter at seqKey,
// leaving the counter one past what it returns.
func (s *Store) nextID(tx kv.Tx, seqKey []byte) (uint32, error) {
	b, ok, err := tx.Get(seqKey)
	if err != nil {
		return 0, err
	}
	next := uint32(1)
	if ok {
		next = decodeUint32(b)
	}
	if err := tx.Set(seqKey, encodeUint32(next+1)); err != nil {
		return 0, err
	}
	return next, nil
}

func encodeUint32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func decodeUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// DefineNamespace creates or overwrites the root-scoped namespace name.
func (s *Store) DefineNamespace(tx kv.Tx, name string) (Namespace, error) {
	key := keys.NamespaceKey(name)
	id := uint32(0)
	if b, ok, err := tx.Get(key); err != nil {
		return Namespace{}, err
	} else if ok {
		existing, err := DecodeNamespace(b)
		if err != nil {
			return Namespace{}, err
		}
		id = existing.NamespaceID
	} else {
		var err error
		if id, err = s.nextID(tx, keys.NamespaceSeqKey()); err != nil {
			return Namespace{}, err
		}
	}
	n := Namespace{NamespaceID: id, Name: name}
	enc, err := n.Encode()
	if err != nil {
		return Namespace{}, err
	}
	if err := tx.Set(key, enc); err != nil {
		return Namespace{}, err
	}
	return n, nil
}

func (s *Store) RemoveNamespace(tx kv.Tx, name string) error {
	return tx.Delete(keys.NamespaceKey(name))
}

// DefineDatabase creates or overwrites the database named name inside
// ns.
func (s *Store) DefineDatabase(tx kv.Tx, ns string, name string, strict bool, cf *ChangeFeedSpec) (Database, error) {
	n, err := s.Namespace(tx, ns)
	if err != nil {
		return Database{}, err
	}
	key := keys.NamespaceDatabaseKey(ns, name)
	id := uint32(0)
	if b, ok, err := tx.Get(key); err != nil {
		return Database{}, err
	} else if ok {
		existing, err := DecodeDatabase(b)
		if err != nil {
			return Database{}, err
		}
		id = existing.DatabaseID
	} else {
		if id, err = s.nextID(tx, keys.DatabaseSeqKey(ns)); err != nil {
			return Database{}, err
		}
	}
	d := Database{NamespaceID: n.NamespaceID, DatabaseID: id, Name: name, ChangeFeed: cf, Strict: strict}
	enc, err := d.Encode()
	if err != nil {
		return Database{}, err
	}
	if err := tx.Set(key, enc); err != nil {
		return Database{}, err
	}
	return d, nil
}

func (s *Store) RemoveDatabase(tx kv.Tx, ns, name string) error {
	return tx.Delete(keys.NamespaceDatabaseKey(ns, name))
}

// DefineTable creates or overwrites a table, keeping t's fields except
// TableID, which is allocated on first DEFINE and reused on every
// subsequent overwrite.
func (s *Store) DefineTable(tx kv.Tx, ns, db string, nsID, dbID uint32, t Table) (Table, error) {
	key := keys.DatabaseEntityKey(ns, db, keys.CategoryTable, t.Name)
	if b, ok, err := tx.Get(key); err != nil {
		return Table{}, err
	} else if ok {
		existing, err := DecodeTable(b)
		if err != nil {
			return Table{}, err
		}
		t.TableID = existing.TableID
	} else {
		id, err := s.nextID(tx, keys.TableSeqKey(ns, db))
		if err != nil {
			return Table{}, err
		}
		t.TableID = id
	}
	enc, err := t.Encode()
	if err != nil {
		return Table{}, err
	}
	if err := tx.Set(key, enc); err != nil {
		return Table{}, err
	}
	s.Cache.PutTable(nsID, dbID, t)
	return t, nil
}

// RemoveTable drops a table's catalog entry and its cached entry plus
// every field/index cached under it. It does not sweep the table's
// stored records or index entries — spec §3.4 scopes REMOVE TABLE to
// the catalog entity itself; reclaiming the now-orphaned record/index
// keyspace is the kind of background compaction pkg/kv's own backends
// (not this package) would own.
func (s *Store) RemoveTable(tx kv.Tx, ns, db string, nsID, dbID uint32, name string) error {
	if err := tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryTable, name)); err != nil {
		return err
	}
	s.Cache.InvalidateTable(nsID, dbID, name)
	return nil
}

// DefineField creates or overwrites one table-scoped field.
func (s *Store) DefineField(tx kv.Tx, ns, db, table string, nsID, dbID uint32, f Field) (Field, error) {
	key := keys.TableEntityKey(ns, db, table, keys.CategoryField, f.Name.String())
	enc, err := f.Encode()
	if err != nil {
		return Field{}, err
	}
	if err := tx.Set(key, enc); err != nil {
		return Field{}, err
	}
	s.Cache.PutField(nsID, dbID, table, f)
	return f, nil
}

func (s *Store) RemoveField(tx kv.Tx, ns, db, table string, nsID, dbID uint32, name string) error {
	if err := tx.Delete(keys.TableEntityKey(ns, db, table, keys.CategoryField, name)); err != nil {
		return err
	}
	// Cache has no per-field remove; InvalidateTable's sweep drops the
	// removed field along with the table's other cached entries, which
	// the next read repopulates from the KV.
	s.Cache.InvalidateTable(nsID, dbID, table)
	return nil
}

// DefineIndex creates or overwrites a secondary index, allocating an
// IndexID on first DEFINE and reusing it on overwrite the same way
// DefineTable reuses TableID.
func (s *Store) DefineIndex(tx kv.Tx, ns, db, table string, nsID, dbID uint32, idx Index) (Index, error) {
	key := keys.TableEntityKey(ns, db, table, keys.CategoryIndex, idx.Name)
	if b, ok, err := tx.Get(key); err != nil {
		return Index{}, err
	} else if ok {
		existing, err := DecodeIndex(b)
		if err != nil {
			return Index{}, err
		}
		idx.IndexID = existing.IndexID
	} else {
		id, err := s.nextID(tx, keys.IndexSeqKey(ns, db, table))
		if err != nil {
			return Index{}, err
		}
		idx.IndexID = id
	}
	enc, err := idx.Encode()
	if err != nil {
		return Index{}, err
	}
	if err := tx.Set(key, enc); err != nil {
		return Index{}, err
	}
	s.Cache.PutIndex(nsID, dbID, table, idx)
	return idx, nil
}

func (s *Store) RemoveIndex(tx kv.Tx, ns, db, table string, nsID, dbID uint32, name string) error {
	if err := tx.Delete(keys.TableEntityKey(ns, db, table, keys.CategoryIndex, name)); err != nil {
		return err
	}
	s.Cache.InvalidateTable(nsID, dbID, table)
	return nil
}

// DefineAccess creates or overwrites a database-scoped JWT/record
// authenticator.
func (s *Store) DefineAccess(tx kv.Tx, ns, db string, nsID, dbID uint32, a Access) (Access, error) {
	enc, err := a.Encode()
	if err != nil {
		return Access{}, err
	}
	if err := tx.Set(keys.DatabaseEntityKey(ns, db, keys.CategoryAccess, a.Name), enc); err != nil {
		return Access{}, err
	}
	s.Cache.PutAccess(nsID, dbID, a)
	return a, nil
}

func (s *Store) RemoveAccess(tx kv.Tx, ns, db string, nsID, dbID uint32, name string) error {
	if err := tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryAccess, name)); err != nil {
		return err
	}
	s.Cache.InvalidateAccess(nsID, dbID, name)
	return nil
}

// DefineUser creates or overwrites a database-scoped authentication
// principal (uncached, matching Store.User's own direct-read shape).
func (s *Store) DefineUser(tx kv.Tx, ns, db string, u User) (User, error) {
	enc, err := u.Encode()
	if err != nil {
		return User{}, err
	}
	if err := tx.Set(keys.DatabaseEntityKey(ns, db, keys.CategoryUser, u.Name), enc); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) RemoveUser(tx kv.Tx, ns, db, name string) error {
	return tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryUser, name))
}

// DefineAnalyzer creates or overwrites a named tokenizer+filter
// pipeline.
func (s *Store) DefineAnalyzer(tx kv.Tx, ns, db string, a Analyzer) (Analyzer, error) {
	enc, err := a.Encode()
	if err != nil {
		return Analyzer{}, err
	}
	if err := tx.Set(keys.DatabaseEntityKey(ns, db, keys.CategoryAnalyzer, a.Name), enc); err != nil {
		return Analyzer{}, err
	}
	return a, nil
}

func (s *Store) RemoveAnalyzer(tx kv.Tx, ns, db, name string) error {
	return tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryAnalyzer, name))
}

// DefineFunction creates or overwrites a user-defined scalar function.
func (s *Store) DefineFunction(tx kv.Tx, ns, db string, f Function) (Function, error) {
	enc, err := f.Encode()
	if err != nil {
		return Function{}, err
	}
	if err := tx.Set(keys.DatabaseEntityKey(ns, db, keys.CategoryFunction, f.Name), enc); err != nil {
		return Function{}, err
	}
	return f, nil
}

func (s *Store) RemoveFunction(tx kv.Tx, ns, db, name string) error {
	return tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryFunction, name))
}

// DefineParam creates or overwrites a database-scoped named constant.
func (s *Store) DefineParam(tx kv.Tx, ns, db string, p Param) (Param, error) {
	enc, err := p.Encode()
	if err != nil {
		return Param{}, err
	}
	if err := tx.Set(keys.DatabaseEntityKey(ns, db, keys.CategoryParam, p.Name), enc); err != nil {
		return Param{}, err
	}
	return p, nil
}

func (s *Store) RemoveParam(tx kv.Tx, ns, db, name string) error {
	return tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryParam, name))
}

// DefineEvent creates or overwrites a table-scoped trigger.
func (s *Store) DefineEvent(tx kv.Tx, ns, db, table string, e Event) (Event, error) {
	enc, err := e.Encode()
	if err != nil {
		return Event{}, err
	}
	if err := tx.Set(keys.TableEntityKey(ns, db, table, keys.CategoryEvent, e.Name), enc); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *Store) RemoveEvent(tx kv.Tx, ns, db, table, name string) error {
	return tx.Delete(keys.TableEntityKey(ns, db, table, keys.CategoryEvent, name))
}

// DefineBucket creates or overwrites an object-store namespace backing
// pkg/bucket.
func (s *Store) DefineBucket(tx kv.Tx, ns, db string, b Bucket) (Bucket, error) {
	enc, err := b.Encode()
	if err != nil {
		return Bucket{}, err
	}
	if err := tx.Set(keys.DatabaseEntityKey(ns, db, keys.CategoryBucket, b.Name), enc); err != nil {
		return Bucket{}, err
	}
	return b, nil
}

func (s *Store) RemoveBucket(tx kv.Tx, ns, db, name string) error {
	return tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryBucket, name))
}

// Api resolves a database-scoped HTTP route definition by its path —
// Store's other entities all have a read-side Get method pairing
// their Define; Api never got one since nothing previously wrote it.
func (s *Store) Api(tx kv.Tx, ns, db, path string) (Api, error) {
	b, ok, err := tx.Get(keys.DatabaseEntityKey(ns, db, keys.CategoryAPI, path))
	if err != nil {
		return Api{}, err
	}
	if !ok {
		return Api{}, errNotFound(xerrors.KindIdNotFound, "api "+path)
	}
	return DecodeApi(b)
}

// DefineApi creates or overwrites the HTTP route at a.Path.
func (s *Store) DefineApi(tx kv.Tx, ns, db string, a Api) (Api, error) {
	enc, err := a.Encode()
	if err != nil {
		return Api{}, err
	}
	if err := tx.Set(keys.DatabaseEntityKey(ns, db, keys.CategoryAPI, a.Path), enc); err != nil {
		return Api{}, err
	}
	return a, nil
}

func (s *Store) RemoveApi(tx kv.Tx, ns, db, path string) error {
	return tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryAPI, path))
}

// Config resolves a database-scoped configuration value by name.
func (s *Store) Config(tx kv.Tx, ns, db, name string) (Config, error) {
	b, ok, err := tx.Get(keys.DatabaseEntityKey(ns, db, keys.CategoryConfig, name))
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, errNotFound(xerrors.KindIdNotFound, "config "+name)
	}
	return DecodeConfig(b)
}

// DefineConfig creates or overwrites a free-form configuration value.
func (s *Store) DefineConfig(tx kv.Tx, ns, db string, c Config) (Config, error) {
	enc, err := c.Encode()
	if err != nil {
		return Config{}, err
	}
	if err := tx.Set(keys.DatabaseEntityKey(ns, db, keys.CategoryConfig, c.Name), enc); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (s *Store) RemoveConfig(tx kv.Tx, ns, db, name string) error {
	return tx.Delete(keys.DatabaseEntityKey(ns, db, keys.CategoryConfig, name))
}
