// Package report renders the per-agent metric table and delivers it to a
// Slack-compatible webhook.
package report

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	"github.com/bytedance/sonic"
	"github.com/mykhaliev/voicebench/logger"
	"github.com/mykhaliev/voicebench/metrics"
)

const (
	DefaultTitle = "Weekly Competitor Testing Results"

	// ResultLinkBase is where a result id resolves to a browsable page.
	ResultLinkBase = "https://app.cekura.ai/results"

	sendTimeout = 30 * time.Second
)

var summaryTemplate = raymond.MustParse(
	"*{{run_name}}*\n\n✅ Completed: {{completed}}/{{total}}\n{{#if failed}}❌ Failed: {{failed}}\n{{/if}}")

// AgentRow is one table row: the agent's display name, a markdown link to
// the remote result (or "N/A" for degraded rows) and the ordered metric
// values.
type AgentRow struct {
	AgentName  string
	ResultLink string
	Metrics    []metrics.Row
}

// ResultLink formats the hyperlink cell for a result id.
func ResultLink(linkBase string, resultID int) string {
	if linkBase == "" {
		linkBase = ResultLinkBase
	}
	return fmt.Sprintf("[Link](%s/%d)", strings.TrimRight(linkBase, "/"), resultID)
}

// MarkdownTable renders the header row from the metric table plus one data
// row per agent.
func MarkdownTable(rows []AgentRow) string {
	if len(rows) == 0 {
		return "No data available"
	}

	headers := []string{"Company-Client", "Link"}
	for _, def := range metrics.Table {
		headers = append(headers, def.Label)
	}

	separators := make([]string, len(headers))
	for i := range separators {
		separators[i] = "---"
	}

	lines := []string{
		"| " + strings.Join(headers, " | ") + " |",
		"| " + strings.Join(separators, " | ") + " |",
	}

	for _, row := range rows {
		values := []string{row.AgentName, row.ResultLink}
		for _, m := range row.Metrics {
			values = append(values, m.Value)
		}
		lines = append(lines, "| "+strings.Join(values, " | ")+" |")
	}

	return strings.Join(lines, "\n")
}

// Summary renders the webhook summary text: run name, completed count and a
// failed line only when something failed.
func Summary(runName string, completed, total int) (string, error) {
	out, err := summaryTemplate.Exec(map[string]interface{}{
		"run_name":  runName,
		"completed": completed,
		"total":     total,
		"failed":    total - completed,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render summary: %w", err)
	}
	return out, nil
}

// ============================================================================
// WEBHOOK SENDER
// ============================================================================

type block struct {
	Type string     `json:"type"`
	Text *blockText `json:"text,omitempty"`
}

type blockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Blocks []block `json:"blocks"`
}

// Sender posts rendered reports to a webhook. Delivery is single-shot:
// a failure is logged and surfaced, never retried.
type Sender struct {
	webhookURL string
	httpClient *http.Client
}

func NewSender(webhookURL string) *Sender {
	return &Sender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

// SendTable delivers a title header, the summary section and the table as a
// fenced monospace section.
func (s *Sender) SendTable(ctx context.Context, markdownTable, summary, title string) error {
	if title == "" {
		title = DefaultTitle
	}

	blocks := []block{
		{Type: "header", Text: &blockText{Type: "plain_text", Text: title}},
	}
	if summary != "" {
		blocks = append(blocks, block{
			Type: "section",
			Text: &blockText{Type: "mrkdwn", Text: summary},
		})
	}
	blocks = append(blocks, block{
		Type: "section",
		Text: &blockText{Type: "mrkdwn", Text: "```\n" + slackTable(markdownTable) + "\n```"},
	})

	if err := s.post(ctx, message{Blocks: blocks}); err != nil {
		return fmt.Errorf("failed to deliver report: %w", err)
	}

	logger.Logger.Info("Report delivered to webhook")
	return nil
}

// SendErrorNotification posts a short failure notice, optionally scoped to
// one agent.
func (s *Sender) SendErrorNotification(ctx context.Context, errorMessage, agentName string) error {
	title := "⚠️ Competitor Testing Error"
	if agentName != "" {
		title += " - " + agentName
	}

	msg := message{Blocks: []block{
		{Type: "header", Text: &blockText{Type: "plain_text", Text: title}},
		{Type: "section", Text: &blockText{Type: "mrkdwn", Text: "```" + errorMessage + "```"}},
	}}

	if err := s.post(ctx, msg); err != nil {
		return fmt.Errorf("failed to deliver error notification: %w", err)
	}
	return nil
}

func (s *Sender) post(ctx context.Context, msg message) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	return nil
}

// slackTable converts a markdown table to the simpler layout Slack renders
// inside a fenced block: the separator row goes away and runs of spaces
// collapse.
func slackTable(markdownTable string) string {
	lines := strings.Split(strings.TrimSpace(markdownTable), "\n")
	if len(lines) < 3 {
		return markdownTable
	}

	processed := make([]string, 0, len(lines)-1)
	for i, line := range lines {
		if i == 1 {
			continue
		}
		clean := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "|"))
		clean = strings.Join(strings.Fields(clean), " ")
		processed = append(processed, clean)
	}

	return strings.Join(processed, "\n")
}
