package metrics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func document(summary map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":     float64(9001),
		"status": "completed",
		"overall_evaluation": map[string]interface{}{
			"metric_summary": summary,
		},
	}
}

func score(v float64) map[string]interface{} {
	return map[string]interface{}{"score": v}
}

func rowValue(t *testing.T, rows []Row, label string) string {
	t.Helper()
	for _, row := range rows {
		if row.Label == label {
			return row.Value
		}
	}
	t.Fatalf("no row with label %q", label)
	return ""
}

func TestExtractBinaryPercentScale(t *testing.T) {
	// score×20 across the full 0-5 range, exact at the endpoints
	cases := []struct {
		score float64
		want  string
	}{
		{0, "0.0%"},
		{1, "20.0%"},
		{2.5, "50.0%"},
		{4, "80.0%"},
		{5, "100.0%"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("score=%v", tc.score), func(t *testing.T) {
			rows := Extract(document(map[string]interface{}{"98800": score(tc.score)}))
			assert.Equal(t, tc.want, rowValue(t, rows, "Relevancy"))
		})
	}
}

func TestExtractAllBinaryMetricsConvert(t *testing.T) {
	rows := Extract(document(map[string]interface{}{
		"98796": score(5), // silence detection
		"98793": score(5), // call termination
		"98800": score(5), // relevancy
		"98808": score(5), // voice tone/clarity
	}))

	assert.Equal(t, "100.0%", rowValue(t, rows, "Detect Silence in Conversation"))
	assert.Equal(t, "100.0%", rowValue(t, rows, "Appropriate Call Termination by Main Agent"))
	assert.Equal(t, "100.0%", rowValue(t, rows, "Relevancy"))
	assert.Equal(t, "100.0%", rowValue(t, rows, "Voice Tone + Clarity"))
}

func TestExtractPassthroughFormatting(t *testing.T) {
	rows := Extract(document(map[string]interface{}{
		"98797": score(1250),   // whole value renders without decimals
		"98809": score(148.75), // fractional value gets two decimals
		"98794": score(180.5),  // decimal kind always gets two decimals
	}))

	assert.Equal(t, "1250", rowValue(t, rows, "Latency (ms)"))
	assert.Equal(t, "148.75", rowValue(t, rows, "Words Per Minute"))
	assert.Equal(t, "180.50", rowValue(t, rows, "Average Pitch (Hz)"))
}

func TestExtractMissingCodesRenderNotAvailable(t *testing.T) {
	rows := Extract(document(map[string]interface{}{"98797": score(900)}))

	require.Len(t, rows, len(Table))
	assert.Equal(t, "900", rowValue(t, rows, "Latency (ms)"))
	for _, row := range rows {
		if row.Label != "Latency (ms)" {
			assert.Equal(t, NotAvailable, row.Value, "label %q", row.Label)
		}
	}
}

func TestExtractNullScoreRendersNotAvailable(t *testing.T) {
	rows := Extract(document(map[string]interface{}{
		"98797": map[string]interface{}{"score": nil},
	}))
	assert.Equal(t, NotAvailable, rowValue(t, rows, "Latency (ms)"))
}

func TestExtractUnknownCodeIsIgnored(t *testing.T) {
	rows := Extract(document(map[string]interface{}{
		"99999": score(3),
		"98797": score(800),
	}))
	require.Len(t, rows, len(Table))
	assert.Equal(t, "800", rowValue(t, rows, "Latency (ms)"))
}

func TestExtractHandlesMissingEvaluation(t *testing.T) {
	rows := Extract(map[string]interface{}{"id": float64(1)})
	require.Len(t, rows, len(Table))
	for _, row := range rows {
		assert.Equal(t, NotAvailable, row.Value)
	}
}

func TestExtractPreservesTableOrder(t *testing.T) {
	rows := Extract(document(nil))
	require.Len(t, rows, len(Table))
	for i, def := range Table {
		assert.Equal(t, def.Label, rows[i].Label)
	}
}

func TestMissingRows(t *testing.T) {
	rows := MissingRows()
	require.Len(t, rows, len(Table))
	for _, row := range rows {
		assert.Equal(t, NotAvailable, row.Value)
	}
}
