package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/val"
)

func TestCacheMissThenHit(t *testing.T) {
	require := require.New(t)
	c, err := NewCache(16)
	require.NoError(err)

	_, ok := c.Table(1, 1, "person")
	require.False(ok)

	c.PutTable(1, 1, NewTable("person", 1))
	got, ok := c.Table(1, 1, "person")
	require.True(ok)
	require.Equal("person", got.Name)
}

func TestCacheScopesByNamespaceAndDatabase(t *testing.T) {
	require := require.New(t)
	c, err := NewCache(16)
	require.NoError(err)

	c.PutTable(1, 1, NewTable("person", 1))
	_, ok := c.Table(1, 2, "person")
	require.False(ok, "same table name in a different database must not hit")
	_, ok = c.Table(2, 1, "person")
	require.False(ok, "same table name in a different namespace must not hit")
}

func TestCacheInvalidateTableDropsFieldsAndIndexes(t *testing.T) {
	require := require.New(t)
	c, err := NewCache(16)
	require.NoError(err)

	c.PutTable(1, 1, NewTable("person", 1))
	c.PutField(1, 1, "person", Field{Name: val.Idiom{val.FieldPart("name")}})
	c.PutIndex(1, 1, "person", Index{Name: "name_idx"})

	c.InvalidateTable(1, 1, "person")

	_, ok := c.Table(1, 1, "person")
	require.False(ok)
	_, ok = c.Field(1, 1, "person", "name")
	require.False(ok)
	_, ok = c.Index(1, 1, "person", "name_idx")
	require.False(ok)
}

func TestCacheAccessInvalidation(t *testing.T) {
	require := require.New(t)
	c, err := NewCache(16)
	require.NoError(err)

	c.PutAccess(1, 1, Access{Name: "user_auth", Kind: AccessRecord})
	_, ok := c.Access(1, 1, "user_auth")
	require.True(ok)

	c.InvalidateAccess(1, 1, "user_auth")
	_, ok = c.Access(1, 1, "user_auth")
	require.False(ok)
}
