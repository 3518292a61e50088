package analytics

import (
	"testing"

	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Coercion(t *testing.T) {
	tests := []struct {
		raw   Value
		i     int
		float float64
	}{
		{"12.5", 12, 12.5},
		{"7", 7, 7},
		{" 3 ", 3, 3},
		{"", 0, 0},
		{"n/a", 0, 0},
		{"NaN", 0, 0},
		{"1e400", 0, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.raw), func(t *testing.T) {
			assert.Equal(t, tt.i, tt.raw.Int())
			assert.InDelta(t, tt.float, tt.raw.Float(), 0.0001)
		})
	}
}

func TestValue_UnmarshalJSON(t *testing.T) {
	values := map[string]Value{}
	err := json.Unmarshal([]byte(`{"a": "12.5", "b": 4, "c": null, "d": 1.25}`), &values)
	require.NoError(t, err)

	assert.Equal(t, Value("12.5"), values["a"])
	assert.Equal(t, Value("4"), values["b"])
	assert.Equal(t, Value(""), values["c"])
	assert.Equal(t, Value("1.25"), values["d"])
}

func TestApply(t *testing.T) {
	stats := &models.BookStats{}
	changed := Apply(stats, map[string]Value{
		"startedCount":  "10",
		"meanPagesRead": "12.5",
		"epubDownloads": "garbage",
	})
	assert.True(t, changed)
	assert.Equal(t, 10, *stats.StatsStartedCount)
	assert.InDelta(t, 12.5, *stats.StatsMeanPagesRead, 0.0001)
	assert.Equal(t, 0, *stats.StatsEpubDownloads)
	// Metrics the feed didn't send are zeroed, not left unset.
	require.NotNil(t, stats.StatsBloomPubDownloads)
	assert.Equal(t, 0, *stats.StatsBloomPubDownloads)
	require.NotNil(t, stats.StatsMeanMinutesRead)

	// Same values again change nothing.
	assert.False(t, Apply(stats, map[string]Value{
		"startedCount":  "10",
		"meanPagesRead": "12.5",
	}))

	assert.True(t, Apply(stats, map[string]Value{"startedCount": "11", "meanPagesRead": "12.5"}))
	assert.Equal(t, 11, *stats.StatsStartedCount)
}

func TestApply_MissingBookGetsZeros(t *testing.T) {
	stats := &models.BookStats{StatsFinishedCount: pointerutil.Int(4)}
	assert.True(t, Apply(stats, nil))
	assert.Equal(t, 0, *stats.StatsFinishedCount)
	assert.Equal(t, 0, *stats.StatsStartedCount)
}

func TestColumns(t *testing.T) {
	cols := Columns()
	assert.Len(t, cols, len(Metrics))
	assert.Contains(t, cols, "stats_bloompub_downloads")
	assert.Contains(t, cols, "stats_mean_minutes_read")
}
