package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/kv/memkv"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(memkv.New(), "ns", "db")
}

func TestPutThenGetRoundTrips(t *testing.T) {
	require := require.New(t)
	s := newStore(t)
	ctx := context.Background()

	require.NoError(s.Put(ctx, "avatars", "a.png", []byte("hello")))
	data, err := s.Get(ctx, "avatars", "a.png")
	require.NoError(err)
	require.Equal([]byte("hello"), data)
}

func TestGetMissingIsIdNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "avatars", "missing")
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindIdNotFound))
}

func TestPutIfNotExistsSkipsWhenPresent(t *testing.T) {
	require := require.New(t)
	s := newStore(t)
	ctx := context.Background()

	wrote, err := s.PutIfNotExists(ctx, "b", "k", []byte("one"))
	require.NoError(err)
	require.True(wrote)

	wrote, err = s.PutIfNotExists(ctx, "b", "k", []byte("two"))
	require.NoError(err)
	require.False(wrote)

	data, err := s.Get(ctx, "b", "k")
	require.NoError(err)
	require.Equal([]byte("one"), data)
}

func TestHeadReportsSizeAndETag(t *testing.T) {
	require := require.New(t)
	s := newStore(t)
	ctx := context.Background()

	require.NoError(s.Put(ctx, "b", "k", []byte("hello")))
	obj, err := s.Head(ctx, "b", "k")
	require.NoError(err)
	require.Equal(int64(5), obj.Size)
	require.NotEmpty(obj.ETag)
}

func TestDeleteThenExistsIsFalse(t *testing.T) {
	require := require.New(t)
	s := newStore(t)
	ctx := context.Background()

	require.NoError(s.Put(ctx, "b", "k", []byte("x")))
	require.NoError(s.Delete(ctx, "b", "k"))

	ok, err := s.Exists(ctx, "b", "k")
	require.NoError(err)
	require.False(ok)
}

func TestListReturnsKeysUnderPrefix(t *testing.T) {
	require := require.New(t)
	s := newStore(t)
	ctx := context.Background()

	require.NoError(s.Put(ctx, "b", "logs/1.txt", []byte("a")))
	require.NoError(s.Put(ctx, "b", "logs/2.txt", []byte("b")))
	require.NoError(s.Put(ctx, "b", "other.txt", []byte("c")))

	keys, err := s.List(ctx, "b", "logs/")
	require.NoError(err)
	require.ElementsMatch([]string{"logs/1.txt", "logs/2.txt"}, keys)
}

func TestCopyPreservesETagAndContent(t *testing.T) {
	require := require.New(t)
	s := newStore(t)
	ctx := context.Background()

	require.NoError(s.Put(ctx, "b", "src", []byte("payload")))
	srcHead, err := s.Head(ctx, "b", "src")
	require.NoError(err)

	require.NoError(s.Copy(ctx, "b", "src", "b2", "dst"))
	dstHead, err := s.Head(ctx, "b2", "dst")
	require.NoError(err)
	require.Equal(srcHead.ETag, dstHead.ETag)

	data, err := s.Get(ctx, "b2", "dst")
	require.NoError(err)
	require.Equal([]byte("payload"), data)
}

func TestRenameMovesObjectAtomically(t *testing.T) {
	require := require.New(t)
	s := newStore(t)
	ctx := context.Background()

	require.NoError(s.Put(ctx, "b", "src", []byte("payload")))
	require.NoError(s.Rename(ctx, "b", "src", "b", "dst"))

	ok, err := s.Exists(ctx, "b", "src")
	require.NoError(err)
	require.False(ok)

	data, err := s.Get(ctx, "b", "dst")
	require.NoError(err)
	require.Equal([]byte("payload"), data)
}

func TestRenameMissingSourceIsIdNotFound(t *testing.T) {
	s := newStore(t)
	err := s.Rename(context.Background(), "b", "missing", "b", "dst")
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindIdNotFound))
}
