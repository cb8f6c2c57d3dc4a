package pipeline

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed crew.yaml
var crewYAML []byte

// AgentDef is the persona behind one or more stages.
type AgentDef struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// TaskDef is the prompt content of one stage.
type TaskDef struct {
	Agent          string `yaml:"agent"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
}

type crewDefs struct {
	Agents map[string]AgentDef `yaml:"agents"`
	Tasks  map[string]TaskDef  `yaml:"tasks"`
}

func loadCrewDefs() (*crewDefs, error) {
	var defs crewDefs
	if err := yaml.Unmarshal(crewYAML, &defs); err != nil {
		return nil, fmt.Errorf("parsing crew.yaml: %w", err)
	}

	for name, task := range defs.Tasks {
		if task.Agent == "" {
			return nil, fmt.Errorf("task %s: no agent", name)
		}
		if _, ok := defs.Agents[task.Agent]; !ok {
			return nil, fmt.Errorf("task %s: unknown agent %q", name, task.Agent)
		}
	}

	return &defs, nil
}
