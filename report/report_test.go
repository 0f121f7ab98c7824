package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/mykhaliev/voicebench/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow(name string) AgentRow {
	rows := metrics.MissingRows()
	rows[0].Value = "1200"
	return AgentRow{
		AgentName:  name,
		ResultLink: ResultLink("", 9001),
		Metrics:    rows,
	}
}

func TestResultLink(t *testing.T) {
	assert.Equal(t, "[Link](https://app.cekura.ai/results/42)", ResultLink("", 42))
	assert.Equal(t, "[Link](http://localhost:8080/r/42)", ResultLink("http://localhost:8080/r/", 42))
}

func TestMarkdownTable(t *testing.T) {
	faker := gofakeit.New(0)
	names := []string{faker.Company(), faker.Company()}

	table := MarkdownTable([]AgentRow{sampleRow(names[0]), sampleRow(names[1])})
	lines := strings.Split(table, "\n")

	// header + separator + one row per agent
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Company-Client")
	assert.Contains(t, lines[0], "Latency (ms)")
	assert.Contains(t, lines[0], "Average Pitch (Hz)")
	assert.Contains(t, lines[1], "---")
	assert.Contains(t, lines[2], names[0])
	assert.Contains(t, lines[3], names[1])
	assert.Contains(t, lines[2], "[Link](https://app.cekura.ai/results/9001)")
}

func TestMarkdownTableEmpty(t *testing.T) {
	assert.Equal(t, "No data available", MarkdownTable(nil))
}

func TestSummary(t *testing.T) {
	out, err := Summary("API_Dec 4", 4, 5)
	require.NoError(t, err)

	assert.Contains(t, out, "*API_Dec 4*")
	assert.Contains(t, out, "✅ Completed: 4/5")
	assert.Contains(t, out, "❌ Failed: 1")
}

func TestSummaryOmitsFailedLineWhenClean(t *testing.T) {
	out, err := Summary("API_Dec 4", 5, 5)
	require.NoError(t, err)

	assert.Contains(t, out, "✅ Completed: 5/5")
	assert.NotContains(t, out, "❌ Failed")
}

func TestSendTablePostsBlocks(t *testing.T) {
	var payload string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		payload = string(body)
	}))
	defer server.Close()

	table := MarkdownTable([]AgentRow{sampleRow("Sierra - SiriusXM")})
	sender := NewSender(server.URL)
	err := sender.SendTable(context.Background(), table, "summary text", "")
	require.NoError(t, err)

	assert.Contains(t, payload, `"type":"header"`)
	assert.Contains(t, payload, DefaultTitle)
	assert.Contains(t, payload, "summary text")
	assert.Contains(t, payload, "Sierra - SiriusXM")
	// table goes out as a fenced block with the separator row dropped
	assert.Contains(t, payload, "```")
	assert.NotContains(t, payload, "---")
}

func TestSendTableDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSender(server.URL)
	err := sender.SendTable(context.Background(), "table", "", "title")
	assert.Error(t, err)
}

func TestSendErrorNotification(t *testing.T) {
	var payload string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		payload = string(body)
	}))
	defer server.Close()

	sender := NewSender(server.URL)
	err := sender.SendErrorNotification(context.Background(), "trigger exploded", "Sierra - SiriusXM")
	require.NoError(t, err)

	assert.Contains(t, payload, "Competitor Testing Error - Sierra - SiriusXM")
	assert.Contains(t, payload, "trigger exploded")
}

func TestSlackTableStripsSeparatorAndCollapsesSpaces(t *testing.T) {
	md := "| A  | B |\n| --- | --- |\n| one   two | three |"
	out := slackTable(md)

	assert.Equal(t, "A | B\none two | three", out)
}
