package report

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statsDoc = `{
	"id": 10,
	"name": "Homepage hero",
	"stats": {
		"conversions": 342,
		"variations_observed_results": [
			{"variation_id": 100, "variation_name": "Original", "test_result": "baseline", "improvement": 0},
			{"variation_id": 101, "variation_name": "Variant B", "test_result": "winner", "improvement": 0.123456},
			{"variation_id": 102, "variation_name": "Variant C", "test_result": "loser", "improvement": -0.05}
		]
	}
}`

const dailyDoc = `{
	"variations_data": [
		{"id": 100, "key": "original", "traffic_distribution": 33.34},
		{"id": 101, "key": "variant_b", "traffic_distribution": 33.33},
		{"id": 102, "key": "variant_c", "traffic_distribution": 33.33}
	],
	"reportData": {
		"variations": [
			{"id": 100, "stats": [{"totals": 50}, {"totals": 110}]},
			{"id": 101, "stats": [{"totals": 60}, {"totals": 140}]}
		]
	}
}`

func parseFixtures(t *testing.T) (ExperienceStats, DailyReport) {
	t.Helper()
	stats, err := ParseStats(json.RawMessage(statsDoc))
	require.NoError(t, err)
	daily, err := ParseDaily(json.RawMessage(dailyDoc))
	require.NoError(t, err)
	return stats, daily
}

func TestSummarize(t *testing.T) {
	stats, daily := parseFixtures(t)

	got := Summarize(stats, daily)

	want := Summary{
		Name:             "Homepage hero",
		TotalConversions: "342",
		Variations: []VariationSummary{
			{ID: "100", Key: "original", Traffic: 33, Conversions: "110"},
			{ID: "101", Key: "variant_b", Traffic: 33, Conversions: "140"},
			{ID: "102", Key: "variant_c", Traffic: 33, Conversions: Unknown},
		},
		Winners: []Winner{{Name: "Variant B", ImprovementPct: 12.35}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "33/33/33", got.Split())
}

func TestSummary_Lines(t *testing.T) {
	stats, daily := parseFixtures(t)

	lines := Summarize(stats, daily).Lines()

	require.Len(t, lines, 3)
	assert.Equal(t, "Fetched conversion and variation stats for experiment: Homepage hero", lines[0])
	assert.Equal(t, "Recorded 342 conversions across 3 variations with split: 33/33/33"+
		"\n - original: 110 conversions"+
		"\n - variant_b: 140 conversions"+
		"\n - variant_c: unknown conversions", lines[1])
	assert.Equal(t, "Possible 1 winners across 3 variations: \n - Variant B: improved by 12.35%", lines[2])
}

func TestSummarize_NoWinners(t *testing.T) {
	var stats ExperienceStats
	stats.Name = "Empty"

	s := Summarize(stats, DailyReport{})
	assert.Empty(t, s.Winners)
	assert.Equal(t, Unknown, s.TotalConversions)
	assert.Equal(t, "Possible 0 winners across 0 variations: ", s.Lines()[2])
}

func TestPrettyJSON(t *testing.T) {
	out, err := PrettyJSON(json.RawMessage(`{"a":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [\n    1,\n    2\n  ]\n}", string(out))

	_, err = PrettyJSON(json.RawMessage(`{`))
	assert.Error(t, err)
}

func TestParseStats_Invalid(t *testing.T) {
	_, err := ParseStats(json.RawMessage(`[]`))
	assert.Error(t, err)
}
