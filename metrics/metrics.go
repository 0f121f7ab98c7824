// Package metrics maps Cekura metric codes to labelled, display-ready values.
package metrics

import (
	"fmt"

	"github.com/yalp/jsonpath"
)

// Kind selects the conversion rule applied to a raw score.
type Kind int

const (
	// Passthrough renders the raw value with display rounding only.
	Passthrough Kind = iota
	// BinaryPercent converts a 0-5 score to 0-100% (raw × 20).
	BinaryPercent
	// Decimal renders with two decimal places.
	Decimal
)

// Definition is one extracted metric. Code is the remote numeric identifier
// (a string key in metric_summary), Label the report column header.
type Definition struct {
	Code  string
	Label string
	Kind  Kind
}

// Table is the fixed, ordered set of metrics pulled from every result.
// Adding a metric is a table entry, nothing else.
var Table = []Definition{
	{Code: "98797", Label: "Latency (ms)", Kind: Passthrough},
	{Code: "98792", Label: "AI interrupting user", Kind: Passthrough},
	{Code: "100866", Label: "User interrupting AI", Kind: Passthrough},
	{Code: "98796", Label: "Detect Silence in Conversation", Kind: BinaryPercent},
	{Code: "98804", Label: "Stop Time after User Interruption (ms)", Kind: Passthrough},
	{Code: "98808", Label: "Voice Tone + Clarity", Kind: BinaryPercent},
	{Code: "98793", Label: "Appropriate Call Termination by Main Agent", Kind: BinaryPercent},
	{Code: "98809", Label: "Words Per Minute", Kind: Passthrough},
	{Code: "98800", Label: "Relevancy", Kind: BinaryPercent},
	{Code: "98794", Label: "Average Pitch (Hz)", Kind: Decimal},
}

// NotAvailable is the placeholder for missing or null scores.
const NotAvailable = "N/A"

const summaryPath = "$.overall_evaluation.metric_summary"

// Row is one rendered metric cell.
type Row struct {
	Label string
	Value string
}

// Extract produces one Row per Table entry from a decoded result document.
// Codes absent from metric_summary, null scores, or a missing summary
// altogether all degrade to "N/A"; extraction never fails.
func Extract(document map[string]interface{}) []Row {
	summary := map[string]interface{}{}
	if raw, err := jsonpath.Read(document, summaryPath); err == nil {
		if m, ok := raw.(map[string]interface{}); ok {
			summary = m
		}
	}

	rows := make([]Row, 0, len(Table))
	for _, def := range Table {
		rows = append(rows, Row{Label: def.Label, Value: extractValue(summary, def)})
	}

	return rows
}

// MissingRows returns the all-"N/A" row set used for agents whose result
// fetch failed.
func MissingRows() []Row {
	rows := make([]Row, 0, len(Table))
	for _, def := range Table {
		rows = append(rows, Row{Label: def.Label, Value: NotAvailable})
	}
	return rows
}

func extractValue(summary map[string]interface{}, def Definition) string {
	entry, ok := summary[def.Code].(map[string]interface{})
	if !ok {
		return NotAvailable
	}

	score, ok := entry["score"].(float64)
	if !ok {
		return NotAvailable
	}

	return formatScore(score, def.Kind)
}

func formatScore(score float64, kind Kind) string {
	switch kind {
	case BinaryPercent:
		return fmt.Sprintf("%.1f%%", score*20)
	case Decimal:
		return fmt.Sprintf("%.2f", score)
	default:
		if score == float64(int64(score)) {
			return fmt.Sprintf("%d", int64(score))
		}
		return fmt.Sprintf("%.2f", score)
	}
}
