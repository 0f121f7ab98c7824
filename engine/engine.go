// Package engine sequences the trigger and fetch flows across the agent
// registry. Agents are fully independent: one agent's failure degrades its
// own row and never aborts the batch.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/life4/genesis/slices"
	"github.com/mykhaliev/voicebench/client"
	"github.com/mykhaliev/voicebench/logger"
	"github.com/mykhaliev/voicebench/metrics"
	"github.com/mykhaliev/voicebench/model"
	"github.com/mykhaliev/voicebench/report"
)

const (
	// Remote runs finish well within this window; fetch -wait gives up after it.
	completionTimeout  = 10 * time.Minute
	completionInterval = 10 * time.Second
)

// RunName derives the run name from a date, e.g. "API_Dec 4". No zero
// padding on the day.
func RunName(t time.Time) string {
	return "API_" + t.Format("Jan 2")
}

// Orchestrator wires the registry, the API client and the webhook sender.
type Orchestrator struct {
	cfg    *model.Configuration
	client *client.Client
	sender *report.Sender

	// WaitForCompletion makes fetch poll each result until the remote run
	// finishes before extracting metrics.
	WaitForCompletion bool

	// Now is the clock used for run names; tests pin it.
	Now func() time.Time
}

func New(cfg *model.Configuration, apiClient *client.Client, sender *report.Sender) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		client: apiClient,
		sender: sender,
		Now:    time.Now,
	}
}

// ============================================================================
// TRIGGER
// ============================================================================

// TriggerOutcome is the per-agent result of one trigger pass.
type TriggerOutcome struct {
	Agent    model.Agent
	ResultID int
	Err      error
}

// Trigger starts a run for every agent in registry order. Partial success is
// success; the returned error is non-nil only when every agent failed.
func (o *Orchestrator) Trigger(ctx context.Context) ([]TriggerOutcome, error) {
	runName := RunName(o.Now())
	logger.Logger.Info("Triggering tests", "run_name", runName, "agents", len(o.cfg.Agents))

	outcomes := make([]TriggerOutcome, 0, len(o.cfg.Agents))
	for _, agent := range o.cfg.Agents {
		logger.Logger.Info("Processing agent",
			"agent", agent.Name,
			"agent_id", agent.AgentID,
			"scenarios", len(agent.Scenarios))

		resultID, err := o.client.RunScenarios(ctx, agent.AgentID, agent.Scenarios, runName)
		if err != nil {
			logger.Logger.Error("Failed to trigger test",
				"agent", agent.Name,
				"agent_id", agent.AgentID,
				"error", err)
		}
		outcomes = append(outcomes, TriggerOutcome{Agent: agent, ResultID: resultID, Err: err})
	}

	failed := slices.Filter(outcomes, func(out TriggerOutcome) bool { return out.Err != nil })
	if len(failed) > 0 {
		names := slices.Map(failed, func(out TriggerOutcome) string { return out.Agent.Name })
		logger.Logger.Warn("Some agents failed to trigger", "agents", strings.Join(names, ", "))
	}

	succeeded := len(outcomes) - len(failed)
	logger.Logger.Info("Trigger pass complete",
		"succeeded", succeeded,
		"total", len(outcomes),
		"run_name", runName)

	if succeeded == 0 {
		return outcomes, fmt.Errorf("no tests were triggered successfully")
	}
	return outcomes, nil
}

// ============================================================================
// FETCH
// ============================================================================

// FetchOutcome pairs an agent with its fetched result. Result is nil when
// the agent's row is degraded to all-"N/A".
type FetchOutcome struct {
	Agent  model.Agent
	Result *client.Result
}

// Fetch collects the latest result for every agent, renders the report and
// delivers it once. Per-agent failures degrade that agent's row; the batch
// fails only when no agent produced data or delivery fails.
func (o *Orchestrator) Fetch(ctx context.Context) error {
	runName := RunName(o.Now())

	outcomes := make([]FetchOutcome, 0, len(o.cfg.Agents))
	for _, agent := range o.cfg.Agents {
		result := o.fetchAgent(ctx, agent, runName)
		outcomes = append(outcomes, FetchOutcome{Agent: agent, Result: result})
	}

	completed := slices.Filter(outcomes, func(out FetchOutcome) bool { return out.Result != nil })
	if len(completed) == 0 {
		msg := fmt.Sprintf("no completed results for any of %d agents (run %s)", len(outcomes), runName)
		if err := o.sender.SendErrorNotification(ctx, msg, ""); err != nil {
			logger.Logger.Error("Failed to send error notification", "error", err)
		}
		return fmt.Errorf("no valid results to send")
	}

	rows := slices.Map(outcomes, func(out FetchOutcome) report.AgentRow {
		if out.Result == nil {
			return report.AgentRow{
				AgentName:  out.Agent.Name,
				ResultLink: metrics.NotAvailable,
				Metrics:    metrics.MissingRows(),
			}
		}
		return report.AgentRow{
			AgentName:  out.Agent.Name,
			ResultLink: report.ResultLink(o.cfg.Settings.ResultLinkBase, out.Result.ID),
			Metrics:    metrics.Extract(out.Result.Document),
		}
	})

	table := report.MarkdownTable(rows)
	summary, err := report.Summary(runName, len(completed), len(outcomes))
	if err != nil {
		return err
	}

	if err := o.sender.SendTable(ctx, table, summary, o.cfg.Report.Title); err != nil {
		logger.Logger.Error("Report delivery failed", "error", err)
		return err
	}

	logger.Logger.Info("Fetch pass complete",
		"completed", len(completed),
		"total", len(outcomes),
		"run_name", runName)
	return nil
}

// fetchAgent resolves one agent's latest result. Any failure along the way
// returns nil, which renders as an all-"N/A" row.
func (o *Orchestrator) fetchAgent(ctx context.Context, agent model.Agent, runName string) *client.Result {
	logger.Logger.Info("Fetching results", "agent", agent.Name, "agent_id", agent.AgentID)

	ref, err := o.client.LatestResult(ctx, agent.AgentID, runName)
	if err != nil {
		logger.Logger.Warn("No results found",
			"agent", agent.Name,
			"agent_id", agent.AgentID,
			"error", err)
		return nil
	}

	var result *client.Result
	if o.WaitForCompletion {
		result, err = o.client.WaitForCompletion(ctx, ref.ID, completionTimeout, completionInterval)
	} else {
		result, err = o.client.ResultByID(ctx, ref.ID)
	}
	if err != nil {
		logger.Logger.Warn("Failed to fetch result detail",
			"agent", agent.Name,
			"result_id", ref.ID,
			"error", err)
		return nil
	}

	if result.Status != client.StatusCompleted {
		logger.Logger.Warn("Latest result is not completed",
			"agent", agent.Name,
			"result_id", result.ID,
			"status", result.Status)
		return nil
	}

	return result
}

// ============================================================================
// DISCOVER
// ============================================================================

// Discover prints the scenario ids seen in each agent's result history.
// Meant for bootstrapping the scenarios lists in the agents config.
func (o *Orchestrator) Discover(ctx context.Context) error {
	found := 0
	for _, agent := range o.cfg.Agents {
		ids, err := o.client.DiscoverScenarios(ctx, agent.AgentID)
		if err != nil {
			logger.Logger.Warn("Scenario discovery failed",
				"agent", agent.Name,
				"agent_id", agent.AgentID,
				"error", err)
			continue
		}
		found++

		idStrings := slices.Map(ids, func(id int) string { return fmt.Sprintf("%d", id) })
		fmt.Printf("%s (agent %d): scenarios [%s]\n", agent.Name, agent.AgentID, strings.Join(idStrings, ", "))
	}

	if found == 0 {
		return fmt.Errorf("no scenarios discovered for any agent")
	}
	return nil
}
