package iteration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iterations.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.Create("bracket", "/models/bracket.stl", 1.0, [3]float64{}, [3]float64{}, ParameterSnapshot{LayerHeight: 0.2}, "standard")
	require.NoError(t, err)
	assert.Len(t, rec.IterationID, 8)
	assert.Equal(t, StatusPending, rec.Status)

	got, ok := s.Get(rec.IterationID)
	require.True(t, ok)
	assert.Equal(t, rec.ModelName, got.ModelName)
	assert.Equal(t, rec.Parameters.LayerHeight, got.Parameters.LayerHeight)
}

func TestUpdateRoundTripEqualsFieldByField(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.Create("bracket", "/models/bracket.stl", 1.0, [3]float64{}, [3]float64{}, ParameterSnapshot{LayerHeight: 0.2}, "standard")
	require.NoError(t, err)

	rec.Notes = "second pass"
	rec.QualityScore = 91
	require.NoError(t, s.Update(rec))

	got, ok := s.Get(rec.IterationID)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestRecordOutcomeComputesSuggestions(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Create("bracket", "/models/bracket.stl", 1.0, [3]float64{}, [3]float64{}, ParameterSnapshot{}, "standard")
	require.NoError(t, err)

	updated, err := s.RecordOutcome(rec.IterationID, Outcome{
		Status:  StatusFailed,
		Quality: 40,
		Defects: []string{"stringing"},
		Notes:   "stringy surface",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, updated.Status)
	assert.NotEmpty(t, updated.Improvements)
	assert.NotNil(t, updated.CompletedAt)
}

func TestListForModelNewestFirst(t *testing.T) {
	s := openTestStore(t)
	first, err := s.Create("bracket", "", 1, [3]float64{}, [3]float64{}, ParameterSnapshot{}, "")
	require.NoError(t, err)
	second, err := s.Create("bracket", "", 1, [3]float64{}, [3]float64{}, ParameterSnapshot{}, "")
	require.NoError(t, err)

	list, err := s.ListForModel("bracket", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.IterationID, list[0].IterationID)
	assert.Equal(t, first.IterationID, list[1].IterationID)
}

func TestStatisticsMatchesScenario(t *testing.T) {
	s := openTestStore(t)

	a, err := s.Create("foo", "", 1, [3]float64{}, [3]float64{}, ParameterSnapshot{}, "")
	require.NoError(t, err)
	_, err = s.RecordOutcome(a.IterationID, Outcome{Status: StatusCompleted, Quality: 85})
	require.NoError(t, err)

	b, err := s.Create("foo", "", 1, [3]float64{}, [3]float64{}, ParameterSnapshot{}, "")
	require.NoError(t, err)
	_, err = s.RecordOutcome(b.IterationID, Outcome{Status: StatusCompleted, Quality: 95})
	require.NoError(t, err)

	c, err := s.Create("foo", "", 1, [3]float64{}, [3]float64{}, ParameterSnapshot{}, "")
	require.NoError(t, err)
	_, err = s.RecordOutcome(c.IterationID, Outcome{Status: StatusFailed})
	require.NoError(t, err)

	stats, err := s.Statistics("foo")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAttempts)
	assert.InDelta(t, 66.7, stats.SuccessRate, 0.1)
	assert.InDelta(t, 90, stats.AverageQuality, 1e-9)
	assert.Equal(t, 95.0, stats.BestQuality)
}
