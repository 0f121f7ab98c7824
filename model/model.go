// Package model defines the agents configuration and its YAML parser.
package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// AGENTS CONFIGURATION
// ============================================================================

// Configuration is the root of the agents YAML file. The agent list is the
// registry of competitor voice systems under test; order is preserved in
// every report.
type Configuration struct {
	Agents   []Agent  `yaml:"agents"`
	Report   Report   `yaml:"report,omitempty"`
	Settings Settings `yaml:"settings,omitempty"`
}

// Agent is one configured competitor system. AgentID is the remote identity;
// Scenarios are the remote scenario ids triggered for it on every run.
type Agent struct {
	Name      string `yaml:"name"`
	AgentID   int    `yaml:"agent_id"`
	Scenarios []int  `yaml:"scenarios"`
}

// Report carries optional presentation overrides for the webhook message.
type Report struct {
	Title string `yaml:"title,omitempty"`
}

// Settings carries optional endpoint overrides. Both default to the
// production Cekura endpoints when empty.
type Settings struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	ResultLinkBase string `yaml:"result_link_base,omitempty"`
}

// ============================================================================
// YAML PARSER
// ============================================================================

func ParseConfig(filename string) (*Configuration, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseConfigFromString(string(data))
}

func ParseConfigFromString(definition string) (*Configuration, error) {
	var config Configuration
	if err := yaml.Unmarshal([]byte(definition), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate enforces the registry contract: every agent needs a display name,
// a remote id and at least one scenario. Scenario ids are not checked against
// the remote system; invalid ids surface later as API errors.
func (c *Configuration) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents configured")
	}

	for i, agent := range c.Agents {
		if agent.Name == "" {
			return fmt.Errorf("agent %d: name is required", i)
		}
		if agent.AgentID <= 0 {
			return fmt.Errorf("agent %q: agent_id is required", agent.Name)
		}
		if len(agent.Scenarios) == 0 {
			return fmt.Errorf("agent %q: at least one scenario is required", agent.Name)
		}
	}

	return nil
}
