// Package plan parses YAML plan files into task descriptors.
package plan

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"baton/pkg/models"
)

// File is the top-level structure of a plan file.
type File struct {
	Tasks []TaskSpec `yaml:"tasks"`
}

// TaskSpec is one task descriptor as written in a plan file.
type TaskSpec struct {
	// ID is optional; a short unique id is generated when omitted.
	ID string `yaml:"id"`
	// Capability names the worker required for this task. Required.
	Capability string `yaml:"capability"`
	// DependsOn lists ids of tasks that must complete first.
	DependsOn []string `yaml:"depends_on"`
	// Input is the payload handed to the worker.
	Input map[string]any `yaml:"input"`
}

// Load reads and parses a plan file from disk.
func Load(path string) ([]*models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	tasks, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return tasks, nil
}

// Parse parses plan YAML into tasks. Structural validation happens here;
// graph-level validation (unknown deps, cycles) happens at graph build time.
func Parse(data []byte) ([]*models.Task, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("plan contains no tasks")
	}

	tasks := make([]*models.Task, 0, len(file.Tasks))
	for i, spec := range file.Tasks {
		if strings.TrimSpace(spec.Capability) == "" {
			return nil, fmt.Errorf("task %d (%q): capability is required", i, spec.ID)
		}

		id := strings.TrimSpace(spec.ID)
		if id == "" {
			id = uuid.New().String()[:8]
		}

		for _, dep := range spec.DependsOn {
			if dep == id {
				return nil, fmt.Errorf("task %q depends on itself", id)
			}
		}

		tasks = append(tasks, &models.Task{
			ID:         id,
			Capability: spec.Capability,
			DependsOn:  spec.DependsOn,
			Input:      models.Payload(spec.Input),
			State:      models.TaskStatePending,
		})
	}
	return tasks, nil
}
