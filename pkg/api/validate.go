package api

import (
	"fmt"
	"sort"
	"strings"
)

var validStepTypes = map[string]bool{
	StepTypeCommand:  true,
	StepTypeTemplate: true,
	StepTypeGenerate: true,
}

var validEnvTypes = map[string]bool{
	EnvTypeLocal:   true,
	EnvTypeTempDir: true,
}

var validVersionTypes = map[string]bool{
	VersionTypeGit:    true,
	VersionTypeStatic: true,
}

// Validate checks the configuration for errors. Every returned error wraps
// ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if err := validateVersionConfig(c.Version); err != nil {
		return fmt.Errorf("version: %w", err)
	}

	if len(c.Envs) == 0 {
		return fmt.Errorf("no environments defined")
	}
	for _, name := range sortedKeys(c.Envs) {
		if err := validateEnvConfig(c.Envs[name]); err != nil {
			return fmt.Errorf("env %q: %w", name, err)
		}
	}

	for _, name := range sortedKeys(c.Steps) {
		if err := validateStepConfig(c.Steps[name]); err != nil {
			return fmt.Errorf("step %q: %w", name, err)
		}
	}

	if len(c.Pipelines) == 0 {
		return fmt.Errorf("no pipelines defined")
	}
	for _, name := range sortedKeys(c.Pipelines) {
		if err := c.validatePipeline(c.Pipelines[name]); err != nil {
			return fmt.Errorf("pipeline %q: %w", name, err)
		}
	}

	return nil
}

func validateVersionConfig(v VersionConfig) error {
	if v.Type == "" {
		return nil
	}
	if !validVersionTypes[v.Type] {
		return fmt.Errorf("unknown type %q", v.Type)
	}
	if v.Type == VersionTypeStatic && v.Value == "" {
		return fmt.Errorf("value is required for type %q", VersionTypeStatic)
	}
	return nil
}

func validateEnvConfig(env EnvConfig) error {
	if !validEnvTypes[env.EnvKind()] {
		return fmt.Errorf("unknown type %q", env.Type)
	}
	if env.DeleteWhenDone != nil && env.EnvKind() != EnvTypeTempDir {
		return fmt.Errorf("deleteWhenDone is only valid for type %q", EnvTypeTempDir)
	}
	for i, key := range env.Probe {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("probe %d: key is empty", i)
		}
	}
	return validateRequirements(env.Requirements)
}

func validateStepConfig(step StepConfig) error {
	if !validStepTypes[step.StepKind()] {
		return fmt.Errorf("unknown type %q", step.Type)
	}

	switch step.StepKind() {
	case StepTypeCommand:
		if strings.TrimSpace(step.Command) == "" {
			return fmt.Errorf("command is required")
		}
	case StepTypeTemplate:
		if step.Template == nil {
			return fmt.Errorf("template config is required")
		}
	case StepTypeGenerate:
		if err := validateGenerateConfig(step); err != nil {
			return err
		}
	}

	return validateRequirements(step.Requirements)
}

func validateGenerateConfig(step StepConfig) error {
	if step.Generate == nil {
		return fmt.Errorf("generate config is required")
	}
	if step.Generate.Output == "" {
		return fmt.Errorf("generate.output is required")
	}
	if step.Generate.Template == "" {
		return fmt.Errorf("generate.template is required")
	}
	return nil
}

func validateRequirements(reqs Requirements) error {
	names := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if names[req.Name] {
			return fmt.Errorf("requirement %q: duplicate name", req.Name)
		}
		names[req.Name] = true

		if req.Key == "" {
			return fmt.Errorf("requirement %q: key is required", req.Name)
		}
		if req.Reason == "" {
			return fmt.Errorf("requirement %q: reason is required", req.Name)
		}

		cmps := req.Comparisons()
		if len(cmps) != 1 {
			return fmt.Errorf("requirement %q: exactly one of %s is required, got %d",
				req.Name, strings.Join([]string{CompareEquals, CompareNotEquals, CompareMatches}, ", "), len(cmps))
		}
	}
	return nil
}

func (c *Config) validatePipeline(stepNames []string) error {
	if len(stepNames) == 0 {
		return fmt.Errorf("pipeline has no steps")
	}
	for i, name := range stepNames {
		if _, ok := c.Steps[name]; !ok {
			known := sortedKeys(c.Steps)
			return fmt.Errorf("step %d: unknown step %q (known: %s)", i, name, strings.Join(known, ", "))
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
