package preprocess

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdrugkit/deepdrugkit/internal/chem"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
)

func TestCacheRoundTrip(t *testing.T) {
	cache, err := OpenCache(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	_, hit, err := cache.Get("missing")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Put("vec", []float32{1, 0, 1}))
	v, hit, err := cache.Get("vec")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []float32{1, 0, 1}, v)

	g, err := chem.SMILESToGraph("CCO", chem.GraphOptions{})
	require.NoError(t, err)
	require.NoError(t, cache.Put("graph", g))
	v, hit, err = cache.Get("graph")
	require.NoError(t, err)
	require.True(t, hit)
	got, ok := v.(*chem.Graph)
	require.True(t, ok)
	assert.Equal(t, g.NumAtoms, got.NumAtoms)
	assert.Equal(t, g.NodeFeatures, got.NodeFeatures)
}

func TestCacheKeyBindsSettingsAndInput(t *testing.T) {
	a := CacheKey("smiles->fingerprint", Settings{"n_bits": 1024}, "CCO")
	b := CacheKey("smiles->fingerprint", Settings{"n_bits": 2048}, "CCO")
	c := CacheKey("smiles->fingerprint", Settings{"n_bits": 1024}, "CCN")
	d := CacheKey("smiles->fingerprint", Settings{"n_bits": 1024}, "CCO")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, d)
}

func TestMaterialize(t *testing.T) {
	obj, err := NewObject("drug", "smiles", "fingerprint", Settings{"n_bits": 128})
	require.NoError(t, err)
	list := NewList(obj)

	records := []Record{
		{"drug": "CCO", "label": 1.0},
		{"drug": "CCN", "label": 0.0},
		{"drug": "c1ccccc1", "label": 1.0},
	}

	out, err := Materialize(context.Background(), list, records, MaterializeOptions{Workers: 2})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, rec := range out {
		vec, ok := rec["drug"].([]float32)
		require.True(t, ok, "record %d", i)
		assert.Len(t, vec, 128)
		assert.Equal(t, records[i]["label"], rec["label"])
	}
	// Source records keep raw SMILES.
	assert.Equal(t, "CCO", records[0]["drug"])
}

func TestMaterializeStopsOnBadRecord(t *testing.T) {
	obj, err := NewObject("drug", "smiles", "graph", nil)
	require.NoError(t, err)

	records := []Record{{"drug": "CCO"}, {"drug": "C1CC"}}
	_, err = Materialize(context.Background(), NewList(obj), records, MaterializeOptions{})
	require.Error(t, err)
}

func TestMaterializeSkipInvalidDropsFailures(t *testing.T) {
	obj, err := NewObject("drug", "smiles", "graph", nil)
	require.NoError(t, err)
	list := NewList(obj)

	records := []Record{{"drug": "CCO"}, {"drug": "C1CC"}, {"drug": "CCN"}}
	out, err := Materialize(context.Background(), list, records, MaterializeOptions{SkipInvalid: true})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// Survivors keep their input order.
	assert.NotNil(t, out[0]["drug"])
	assert.NotNil(t, out[1]["drug"])
}

func TestMaterializeRecordsTelemetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cache, err := OpenCache(path)
	require.NoError(t, err)
	defer cache.Close()

	obj, err := NewObject("drug", "smiles", "fingerprint", Settings{"n_bits": 64})
	require.NoError(t, err)
	list := NewList(obj)
	records := []Record{{"drug": "CCO"}, {"drug": "CCN"}}

	tm := monitoring.NewInMemoryTrainingMetrics()
	opts := MaterializeOptions{Cache: cache, Workers: 1, Metrics: tm}

	_, err = Materialize(context.Background(), list, records, opts)
	require.NoError(t, err)
	stats := tm.GetCurrentStats()
	assert.Equal(t, int64(2), stats.PreprocessOps)
	assert.Zero(t, stats.PreprocessErrs)
	assert.Zero(t, stats.CacheHitRate) // two misses

	_, err = Materialize(context.Background(), list, records, opts)
	require.NoError(t, err)
	stats = tm.GetCurrentStats()
	assert.Equal(t, int64(2), stats.PreprocessOps) // second pass served from cache
	assert.InDelta(t, 0.5, stats.CacheHitRate, 1e-9)
}

func TestMaterializeWithCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cache, err := OpenCache(path)
	require.NoError(t, err)
	defer cache.Close()

	obj, err := NewObject("drug", "smiles", "fingerprint", Settings{"n_bits": 64})
	require.NoError(t, err)
	list := NewList(obj)
	records := []Record{{"drug": "CCO"}, {"drug": "CCN"}}

	first, err := Materialize(context.Background(), list, records, MaterializeOptions{Cache: cache, Workers: 1})
	require.NoError(t, err)
	second, err := Materialize(context.Background(), list, records, MaterializeOptions{Cache: cache, Workers: 1})
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i]["drug"], second[i]["drug"])
	}

	// The cached entry is directly addressable.
	key := CacheKey(obj.Key(), obj.Settings, "CCO")
	v, hit, err := cache.Get(key)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, first[0]["drug"], v)
}
