package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Task is a unit of work to place on a host. Weight is a relative size
// hint; zero means the default of 1.
type Task struct {
	Command string `yaml:"command" json:"command"`
	Weight  int    `yaml:"weight,omitempty" json:"weight"`
}

// EffectiveWeight returns Weight, or 1 when Weight is not positive.
func (t Task) EffectiveWeight() int {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

// TaskFile is a YAML list of tasks to distribute.
type TaskFile struct {
	Name           string `yaml:"name"`
	AllowDangerous bool   `yaml:"allow-dangerous"`
	Tasks          []Task `yaml:"tasks"`
}

// LoadTasks reads a YAML task file and returns it validated.
func LoadTasks(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := ValidateTaskFile(&tf); err != nil {
		return nil, err
	}
	return &tf, nil
}
