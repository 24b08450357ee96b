// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"conversation-orchestrator/internal/common/validation"
)

//go:embed activity-registry.json
var builtin []byte

// Default returns the catalog compiled into the binary.
func Default() (*ActivityRegistry, error) {
	return parse(builtin)
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// Load reads the catalog at path, or the built-in one when path is empty.
func Load(path string) (*ActivityRegistry, error) {
	if path == "" {
		return Default()
	}
	return LoadRegistry(path)
}

func parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse activity registry: %w", err)
	}
	return &reg, nil
}

// Check verifies required fields, unique ids and task types, timeouts, and
// that every input schema compiles.
func (r *ActivityRegistry) Check() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if taskTypes[activity.TaskType] {
			return fmt.Errorf("duplicate task type: %s", activity.TaskType)
		}
		taskTypes[activity.TaskType] = true

		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if activity.Timeout != "" {
			if _, err := time.ParseDuration(activity.Timeout); err != nil {
				return fmt.Errorf("activity %s has invalid timeout %q", activity.ID, activity.Timeout)
			}
		}
	}

	return r.RegisterSchemas(validation.NewValidator())
}

// RegisterSchemas compiles each activity's input schema into v under its task type.
func (r *ActivityRegistry) RegisterSchemas(v *validation.Validator) error {
	for _, activity := range r.Activities {
		if len(activity.InputSchema) == 0 {
			continue
		}
		if err := v.Register(activity.TaskType, activity.InputSchema); err != nil {
			return fmt.Errorf("activity %s: %w", activity.ID, err)
		}
	}
	return nil
}

// ValidateVariables checks job variables for taskType against its input schema.
func (r *ActivityRegistry) ValidateVariables(taskType string, vars map[string]interface{}) (*validation.ValidationResult, error) {
	activity, ok := r.Find(taskType)
	if !ok {
		return nil, fmt.Errorf("unknown task type: %s", taskType)
	}
	return validation.ValidateInput(vars, activity.InputSchema)
}
