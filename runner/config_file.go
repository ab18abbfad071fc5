package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/tool"
)

// FileAgent is the YAML shape of one agent definition.
type FileAgent struct {
	Name               string   `yaml:"name"`
	Instructions       string   `yaml:"instructions"`
	Model              string   `yaml:"model,omitempty"`
	HandoffDescription string   `yaml:"handoff_description,omitempty"`
	Tools              []string `yaml:"tools,omitempty"`
	Handoffs           []string `yaml:"handoffs,omitempty"`
}

// FileConfig is the YAML shape of a declarative agent graph. Tools are
// referenced by name and bound from a caller-supplied toolset, since tool
// implementations live in code.
type FileConfig struct {
	WorkflowName string      `yaml:"workflow_name,omitempty"`
	Model        string      `yaml:"model,omitempty"`
	MaxTurns     int         `yaml:"max_turns,omitempty"`
	Start        string      `yaml:"start"`
	Agents       []FileAgent `yaml:"agents"`
}

// LoadConfigFile reads a YAML agent graph and returns the starting agent
// plus a RunConfig option carrying the file's run settings. Handoff edges
// may form cycles; they are resolved in a second pass.
func LoadConfigFile(path string, toolset map[string]tool.Tool) (*agent.Agent, func(c *RunConfig), error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parse config file: %w", err)
	}

	if len(cfg.Agents) == 0 {
		return nil, nil, fmt.Errorf("config file declares no agents")
	}

	agents := make(map[string]*agent.Agent, len(cfg.Agents))

	for _, fa := range cfg.Agents {
		if fa.Name == "" {
			return nil, nil, fmt.Errorf("config file declares an agent without a name")
		}

		if _, ok := agents[fa.Name]; ok {
			return nil, nil, fmt.Errorf("config file declares agent %q twice", fa.Name)
		}

		tools := make([]tool.Tool, 0, len(fa.Tools))

		for _, name := range fa.Tools {
			t, ok := toolset[name]
			if !ok {
				return nil, nil, fmt.Errorf("agent %q references unknown tool %q", fa.Name, name)
			}

			tools = append(tools, t)
		}

		agents[fa.Name] = agent.New(fa.Name, func(o *agent.Options) {
			o.Instructions = agent.NewInstruction(fa.Instructions)
			o.Model = fa.Model
			o.HandoffDescription = fa.HandoffDescription
			o.Tools = tools
		})
	}

	// Second pass wires the handoff edges, cycles included.
	for _, fa := range cfg.Agents {
		source := agents[fa.Name]

		for _, targetName := range fa.Handoffs {
			target, ok := agents[targetName]
			if !ok {
				return nil, nil, fmt.Errorf("agent %q references unknown handoff target %q", fa.Name, targetName)
			}

			source.Handoffs = append(source.Handoffs, agent.NewHandoff(target))
		}
	}

	start, ok := agents[cfg.Start]
	if !ok {
		return nil, nil, fmt.Errorf("config file references unknown start agent %q", cfg.Start)
	}

	option := func(c *RunConfig) {
		if cfg.Model != "" {
			c.Model = cfg.Model
		}

		if cfg.MaxTurns > 0 {
			c.MaxTurns = cfg.MaxTurns
		}

		if cfg.WorkflowName != "" {
			c.WorkflowName = cfg.WorkflowName
		}
	}

	return start, option, nil
}
