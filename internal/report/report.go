// Package report summarizes experience statistics and daily reports into
// the lines printed by the stats command.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/campaigntrip/convertapi/internal/convert"
)

// ObservedResult is the statistical verdict for one variation.
type ObservedResult struct {
	VariationID   convert.ID `json:"variation_id"`
	VariationName string     `json:"variation_name"`
	TestResult    string     `json:"test_result"`
	Improvement   float64    `json:"improvement"`
}

// ExperienceStats is the part of an experience document fetched with
// stats included that the summary reads.
type ExperienceStats struct {
	ID    convert.ID `json:"id"`
	Name  string     `json:"name"`
	Stats struct {
		Conversions               json.RawMessage  `json:"conversions"`
		VariationsObservedResults []ObservedResult `json:"variations_observed_results"`
	} `json:"stats"`
}

// VariationData describes a variation in a daily report.
type VariationData struct {
	ID                  convert.ID `json:"id"`
	Key                 string     `json:"key"`
	TrafficDistribution float64    `json:"traffic_distribution"`
}

// ReportVariation holds the per-day stats of one variation; the last entry
// carries the running totals.
type ReportVariation struct {
	ID    convert.ID `json:"id"`
	Stats []struct {
		Totals json.RawMessage `json:"totals"`
	} `json:"stats"`
}

// DailyReport is the "data" member of the daily_report endpoint.
type DailyReport struct {
	VariationsData []VariationData `json:"variations_data"`
	ReportData     struct {
		Variations []ReportVariation `json:"variations"`
	} `json:"reportData"`
}

// ParseStats decodes an experience document fetched with stats.
func ParseStats(raw json.RawMessage) (ExperienceStats, error) {
	var s ExperienceStats
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode experience stats: %w", err)
	}
	return s, nil
}

// ParseDaily decodes a daily report.
func ParseDaily(raw json.RawMessage) (DailyReport, error) {
	var d DailyReport
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("decode daily report: %w", err)
	}
	return d, nil
}

// Unknown is printed for values the API did not send.
const Unknown = "unknown"

// VariationSummary is one variation's line in the summary.
type VariationSummary struct {
	ID          string
	Key         string
	Traffic     int
	Conversions string
}

// Winner is a variation the API flags as beating the baseline.
type Winner struct {
	Name           string
	ImprovementPct float64
}

// Summary is the condensed view of an experience's results.
type Summary struct {
	Name             string
	TotalConversions string
	Variations       []VariationSummary
	Winners          []Winner
}

// Summarize combines an experience's stats with its daily report.
func Summarize(stats ExperienceStats, daily DailyReport) Summary {
	totals := make(map[string]string, len(daily.ReportData.Variations))
	for _, v := range daily.ReportData.Variations {
		if n := len(v.Stats); n > 0 {
			totals[v.ID.String()] = compact(v.Stats[n-1].Totals)
		}
	}

	s := Summary{
		Name:             stats.Name,
		TotalConversions: compact(stats.Stats.Conversions),
	}

	for _, v := range daily.VariationsData {
		conv, ok := totals[v.ID.String()]
		if !ok {
			conv = Unknown
		}
		s.Variations = append(s.Variations, VariationSummary{
			ID:          v.ID.String(),
			Key:         v.Key,
			Traffic:     int(v.TrafficDistribution),
			Conversions: conv,
		})
	}

	for _, r := range stats.Stats.VariationsObservedResults {
		if r.TestResult != "winner" {
			continue
		}
		s.Winners = append(s.Winners, Winner{
			Name:           r.VariationName,
			ImprovementPct: math.Round(r.Improvement*10000) / 100,
		})
	}

	return s
}

// Split renders the traffic distribution as "50/50".
func (s Summary) Split() string {
	parts := make([]string, len(s.Variations))
	for i, v := range s.Variations {
		parts[i] = strconv.Itoa(v.Traffic)
	}
	return strings.Join(parts, "/")
}

// Lines renders the summary as log lines.
func (s Summary) Lines() []string {
	var vars strings.Builder
	for _, v := range s.Variations {
		fmt.Fprintf(&vars, "\n - %s: %s conversions", v.Key, v.Conversions)
	}

	var wins strings.Builder
	for _, w := range s.Winners {
		fmt.Fprintf(&wins, "\n - %s: improved by %s%%", w.Name,
			strconv.FormatFloat(w.ImprovementPct, 'f', -1, 64))
	}

	return []string{
		"Fetched conversion and variation stats for experiment: " + s.Name,
		fmt.Sprintf("Recorded %s conversions across %d variations with split: %s%s",
			s.TotalConversions, len(s.Variations), s.Split(), vars.String()),
		fmt.Sprintf("Possible %d winners across %d variations: %s",
			len(s.Winners), len(s.Variations), wins.String()),
	}
}

// PrettyJSON indents raw with two spaces.
func PrettyJSON(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return Unknown
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
