package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/val"
)

func TestDefineNamespaceAllocatesIDOnceAndReusesOnOverwrite(t *testing.T) {
	require := require.New(t)
	s, tx := newStoreFixture(t)

	n1, err := s.DefineNamespace(tx, "ns1")
	require.NoError(err)
	require.Equal(uint32(1), n1.NamespaceID)

	n2, err := s.DefineNamespace(tx, "ns2")
	require.NoError(err)
	require.Equal(uint32(2), n2.NamespaceID)

	// Redefining ns1 overwrites in place, reusing its existing id.
	n1again, err := s.DefineNamespace(tx, "ns1")
	require.NoError(err)
	require.Equal(uint32(1), n1again.NamespaceID)

	got, err := s.Namespace(tx, "ns1")
	require.NoError(err)
	require.Equal(uint32(1), got.NamespaceID)
}

func TestRemoveNamespaceDeletesEntity(t *testing.T) {
	require := require.New(t)
	s, tx := newStoreFixture(t)

	_, err := s.DefineNamespace(tx, "ns1")
	require.NoError(err)
	require.NoError(s.RemoveNamespace(tx, "ns1"))

	_, err = s.Namespace(tx, "ns1")
	require.Error(err)
}

func TestDefineDatabaseResolvesNamespaceAndAllocatesID(t *testing.T) {
	require := require.New(t)
	s, tx := newStoreFixture(t)

	ns, err := s.DefineNamespace(tx, "ns1")
	require.NoError(err)

	d1, err := s.DefineDatabase(tx, "ns1", "db1", true, nil)
	require.NoError(err)
	require.Equal(ns.NamespaceID, d1.NamespaceID)
	require.Equal(uint32(1), d1.DatabaseID)
	require.True(d1.Strict)

	d1again, err := s.DefineDatabase(tx, "ns1", "db1", false, nil)
	require.NoError(err)
	require.Equal(d1.DatabaseID, d1again.DatabaseID)
	require.False(d1again.Strict)
}

func TestDefineTableAllocatesThenCachesAndRemoveInvalidates(t *testing.T) {
	require := require.New(t)
	s, tx := newStoreFixture(t)

	tbl := NewTable("person", 0)
	got, err := s.DefineTable(tx, "ns1", "db1", 1, 1, tbl)
	require.NoError(err)
	require.Equal(uint32(1), got.TableID)

	cached, ok := s.Cache.Table(1, 1, "person")
	require.True(ok)
	require.Equal(uint32(1), cached.TableID)

	// Overwriting keeps the same TableID rather than allocating a new one.
	got2, err := s.DefineTable(tx, "ns1", "db1", 1, 1, NewTable("person", 0))
	require.NoError(err)
	require.Equal(got.TableID, got2.TableID)

	require.NoError(s.RemoveTable(tx, "ns1", "db1", 1, 1, "person"))
	_, ok = s.Cache.Table(1, 1, "person")
	require.False(ok)

	_, err = s.Table(tx, "ns1", "db1", 1, 1, "person")
	require.Error(err)
}

func TestDefineFieldWritesAndCaches(t *testing.T) {
	require := require.New(t)
	s, tx := newStoreFixture(t)

	f := Field{Name: val.Idiom{val.FieldPart("age")}, Kind: &val.Kind{}}
	got, err := s.DefineField(tx, "ns1", "db1", "person", 1, 1, f)
	require.NoError(err)
	require.Equal("age", got.Name.String())

	read, err := s.Field(tx, "ns1", "db1", "person", 1, 1, "age")
	require.NoError(err)
	require.Equal("age", read.Name.String())

	require.NoError(s.RemoveField(tx, "ns1", "db1", "person", 1, 1, "age"))
	_, err = s.Field(tx, "ns1", "db1", "person", 1, 1, "age")
	require.Error(err)
}

func TestDefineIndexAllocatesIDAndRemoveInvalidatesTableScope(t *testing.T) {
	require := require.New(t)
	s, tx := newStoreFixture(t)

	idx := Index{Name: "by_age", Fields: []val.Idiom{{val.FieldPart("age")}}}
	got, err := s.DefineIndex(tx, "ns1", "db1", "person", 1, 1, idx)
	require.NoError(err)
	require.Equal(uint32(1), got.IndexID)

	_, ok := s.Cache.Index(1, 1, "person", "by_age")
	require.True(ok)

	require.NoError(s.RemoveIndex(tx, "ns1", "db1", "person", 1, 1, "by_age"))
	_, ok = s.Cache.Index(1, 1, "person", "by_age")
	require.False(ok)

	_, err = s.Index(tx, "ns1", "db1", "person", 1, 1, "by_age")
	require.Error(err)
}

func TestDefineAccessAndUserRoundTrip(t *testing.T) {
	require := require.New(t)
	s, tx := newStoreFixture(t)

	_, err := s.DefineAccess(tx, "ns1", "db1", 1, 1, Access{Name: "jwt1", Kind: AccessKey, Key: "secret"})
	require.NoError(err)
	a, err := s.Access(tx, "ns1", "db1", 1, 1, "jwt1")
	require.NoError(err)
	require.Equal("secret", a.Key)

	require.NoError(s.RemoveAccess(tx, "ns1", "db1", 1, 1, "jwt1"))
	_, err = s.Access(tx, "ns1", "db1", 1, 1, "jwt1")
	require.Error(err)

	_, err = s.DefineUser(tx, "ns1", "db1", User{Name: "root", PasswordHash: "h"})
	require.NoError(err)
	u, err := s.User(tx, "ns1", "db1", "root")
	require.NoError(err)
	require.Equal("h", u.PasswordHash)

	require.NoError(s.RemoveUser(tx, "ns1", "db1", "root"))
	_, err = s.User(tx, "ns1", "db1", "root")
	require.Error(err)
}

func TestDefineApiAndConfigRoundTrip(t *testing.T) {
	require := require.New(t)
	s, tx := newStoreFixture(t)

	_, err := s.DefineApi(tx, "ns1", "db1", Api{Path: "/widgets", Method: "GET"})
	require.NoError(err)
	a, err := s.Api(tx, "ns1", "db1", "/widgets")
	require.NoError(err)
	require.Equal("GET", a.Method)
	require.NoError(s.RemoveApi(tx, "ns1", "db1", "/widgets"))
	_, err = s.Api(tx, "ns1", "db1", "/widgets")
	require.Error(err)

	_, err = s.DefineConfig(tx, "ns1", "db1", Config{Name: "graphql", Value: val.Bool(true)})
	require.NoError(err)
	c, err := s.Config(tx, "ns1", "db1", "graphql")
	require.NoError(err)
	require.Equal(val.Bool(true), c.Value)
	require.NoError(s.RemoveConfig(tx, "ns1", "db1", "graphql"))
	_, err = s.Config(tx, "ns1", "db1", "graphql")
	require.Error(err)
}
