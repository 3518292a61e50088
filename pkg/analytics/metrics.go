package analytics

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/segmentio/encoding/json"
)

// Value is a metric as sent by the statistics service. It arrives as a
// JSON string, a number or null.
type Value string

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	*v = Value(data)
	return nil
}

// Int coerces the value to an integer. Fractions are truncated and anything
// unparseable becomes zero.
func (v Value) Int() int {
	f := v.Float()
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int(f)
}

// Float coerces the value to a decimal. Anything unparseable becomes zero.
func (v Value) Float() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Metric ties a feed metric name to the book column it is copied into.
type Metric struct {
	Name    string
	Column  string
	Decimal bool

	ints   func(s *models.BookStats) **int
	floats func(s *models.BookStats) **float64
}

// Metrics lists every tracked metric.
var Metrics = []Metric{
	{Name: "startedCount", Column: "stats_started_count", ints: func(s *models.BookStats) **int { return &s.StatsStartedCount }},
	{Name: "finishedCount", Column: "stats_finished_count", ints: func(s *models.BookStats) **int { return &s.StatsFinishedCount }},
	{Name: "shellDownloads", Column: "stats_shell_downloads", ints: func(s *models.BookStats) **int { return &s.StatsShellDownloads }},
	{Name: "pdfDownloads", Column: "stats_pdf_downloads", ints: func(s *models.BookStats) **int { return &s.StatsPDFDownloads }},
	{Name: "epubDownloads", Column: "stats_epub_downloads", ints: func(s *models.BookStats) **int { return &s.StatsEpubDownloads }},
	{Name: "bloomPubDownloads", Column: "stats_bloompub_downloads", ints: func(s *models.BookStats) **int { return &s.StatsBloomPubDownloads }},
	{Name: "meanPagesRead", Column: "stats_mean_pages_read", Decimal: true, floats: func(s *models.BookStats) **float64 { return &s.StatsMeanPagesRead }},
	{Name: "meanMinutesRead", Column: "stats_mean_minutes_read", Decimal: true, floats: func(s *models.BookStats) **float64 { return &s.StatsMeanMinutesRead }},
}

// Columns returns the book columns written by the metrics.
func Columns() []string {
	out := make([]string, 0, len(Metrics))
	for _, m := range Metrics {
		out = append(out, m.Column)
	}
	return out
}

// Apply copies the coerced metrics into stats and reports whether any
// stored value changed. A book the feed doesn't mention gets zeros.
func Apply(stats *models.BookStats, values map[string]Value) bool {
	changed := false
	for _, m := range Metrics {
		raw := values[m.Name]
		if m.Decimal {
			field := m.floats(stats)
			next := raw.Float()
			if *field == nil || **field != next {
				*field = &next
				changed = true
			}
			continue
		}
		field := m.ints(stats)
		next := raw.Int()
		if *field == nil || **field != next {
			*field = &next
			changed = true
		}
	}
	return changed
}
