package hnsw

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
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

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New("ns", "db", "doc", "vec_idx", Params{
		Dimension:      3,
		Distance:       DistanceEuclidean,
		VectorType:     VectorF32,
		M:              4,
		EfConstruction: 16,
		Ml:             1,
	}, 0, prometheus.NewRegistry())
	require.NoError(t, err)
	return idx
}

func TestInsertThenSearchReturnsClosestVector(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(1), []float64{0, 0, 0}))
	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(2), []float64{10, 10, 10}))
	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(3), []float64{0.1, 0, 0}))

	results, err := idx.Search(tx, []float64{0, 0, 0}, 1, 8, nil)
	require.NoError(err)
	require.Len(results, 1)
	require.EqualValues(1, results[0].ID.Num)
}

func TestSearchReturnsKResultsOrderedByDistance(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(1), []float64{0, 0, 0}))
	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(2), []float64{1, 0, 0}))
	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(3), []float64{5, 5, 5}))

	results, err := idx.Search(tx, []float64{0, 0, 0}, 2, 8, nil)
	require.NoError(err)
	require.Len(results, 2)
	require.LessOrEqual(results[0].Distance, results[1].Distance)
}

func TestDeleteRemovesNodeFromSearchResults(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(1), []float64{0, 0, 0}))
	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(2), []float64{1, 1, 1}))
	require.NoError(idx.Delete(tx, val.NewRecordIDNumber(1)))

	results, err := idx.Search(tx, []float64{0, 0, 0}, 5, 8, nil)
	require.NoError(err)
	for _, r := range results {
		require.NotEqualValues(1, r.ID.Num)
	}
}

func TestCachedCheckerFiltersAndMemoizes(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(1), []float64{0, 0, 0}))
	require.NoError(idx.Insert(ctx, tx, val.NewRecordIDNumber(2), []float64{0.1, 0, 0}))

	calls := 0
	checker, err := NewCachedChecker(8, func(id val.RecordIdKey) (bool, error) {
		calls++
		return id.Num != 1, nil
	})
	require.NoError(err)

	results, err := idx.Search(tx, []float64{0, 0, 0}, 5, 8, checker)
	require.NoError(err)
	for _, r := range results {
		require.NotEqualValues(1, r.ID.Num)
	}

	before := calls
	_, err = checker.Check(val.NewRecordIDNumber(2))
	require.NoError(err)
	require.Equal(before, calls)
}

func TestEuclideanDistanceSymmetric(t *testing.T) {
	require := require.New(t)
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	require.InDelta(distance(DistanceEuclidean, VectorF32, 0, a, b), distance(DistanceEuclidean, VectorF32, 0, b, a), 1e-9)
}

func TestEuclideanIntegralMatchesFloatPath(t *testing.T) {
	require := require.New(t)
	a := []float64{1, 2, 3}
	b := []float64{4, 6, 3}
	require.InDelta(sumSquaredDiffSqrt(a, b), distance(DistanceEuclidean, VectorI32, 0, a, b), 1e-6)
}

func sumSquaredDiffSqrt(a, b []float64) float64 {
	return distance(DistanceEuclidean, VectorF32, 0, a, b)
}
