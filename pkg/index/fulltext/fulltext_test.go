package fulltext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/kv/memkv"
	"github.com/nexusdb/nexus/pkg/val"
)

func openTx(t *testing.T) (kv.Tx, func()) {
	t.Helper()
	db := memkv.New()
	tx, err := db.Begin(context.Background(), kv.ReadWrite)
	require.NoError(t, err)
	return tx, func() { tx.Cancel(); _ = db.Close() }
}

func TestIndexDocThenSearchFindsMatchingDoc(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "article", "body_idx", DefaultAnalyzer(), 1.2, 0.75)
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(1), "the quick brown fox jumps over the lazy dog", 1, 1))
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(2), "completely unrelated text about gardening", 1, 2))

	hits, err := idx.Search(tx, "quick fox", OpAnd)
	require.NoError(err)
	require.Len(hits, 1)
	require.EqualValues(1, hits[0].DocID.Num)
	require.Greater(hits[0].Score, 0.0)
}

func TestSearchOrUnionsAcrossTerms(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "article", "body_idx", DefaultAnalyzer(), 1.2, 0.75)
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(1), "apples and oranges", 1, 1))
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(2), "bananas and grapes", 1, 2))

	hits, err := idx.Search(tx, "apples grapes", OpOr)
	require.NoError(err)
	require.Len(hits, 2)
}

func TestSearchAndRequiresEveryTerm(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "article", "body_idx", DefaultAnalyzer(), 1.2, 0.75)
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(1), "apples and oranges", 1, 1))
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(2), "bananas and grapes", 1, 2))

	hits, err := idx.Search(tx, "apples grapes", OpAnd)
	require.NoError(err)
	require.Empty(hits)
}

func TestRemoveDocRetractsFromSearch(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "article", "body_idx", DefaultAnalyzer(), 1.2, 0.75)
	text := "the quick brown fox"
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(1), text, 1, 1))

	hits, err := idx.Search(tx, "fox", OpAnd)
	require.NoError(err)
	require.Len(hits, 1)

	require.NoError(idx.RemoveDoc(tx, val.NewRecordIDNumber(1), text, 2, 1))
	hits, err = idx.Search(tx, "fox", OpAnd)
	require.NoError(err)
	require.Empty(hits)
}

func TestStatsTrackDocAndTokenCounts(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "article", "body_idx", DefaultAnalyzer(), 1.2, 0.75)
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(1), "one two three", 1, 1))
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(2), "four five", 1, 2))

	docCount, totalTokens, err := idx.Stats(tx)
	require.NoError(err)
	require.EqualValues(2, docCount)
	require.EqualValues(5, totalTokens)
}

func TestCompactLeavesOnlyLiveEntries(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "article", "body_idx", DefaultAnalyzer(), 1.2, 0.75)
	text := "shared term"
	require.NoError(idx.IndexDoc(tx, val.NewRecordIDNumber(1), text, 1, 1))
	require.NoError(idx.RemoveDoc(tx, val.NewRecordIDNumber(1), text, 2, 1))
	require.NoError(idx.Compact(tx, "shared"))

	_, ids, err := idx.livePostings(tx, "shared")
	require.NoError(err)
	require.Empty(ids)
}

func TestTokenizeDropsStopwordsAndLowercases(t *testing.T) {
	require := require.New(t)
	a := DefaultAnalyzer()
	tokens := a.Tokenize("The Quick Brown Fox and a Lazy Dog")
	require.NotContains(tokens, "the")
	require.NotContains(tokens, "and")
	require.Contains(tokens, "quick")
}
