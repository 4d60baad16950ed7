package api

const (
	DefaultConfigFile  = "piper.yml"
	DefaultFileInclude = "**/*.tmpl"

	StepTypeCommand  = "command"
	StepTypeTemplate = "template"
	StepTypeGenerate = "generate"

	EnvTypeLocal   = "local"
	EnvTypeTempDir = "tempdir"

	VersionTypeGit    = "git"
	VersionTypeStatic = "static"

	CompareEquals    = "equals"
	CompareNotEquals = "not_equals"
	CompareMatches   = "matches"
)

// Config is the piper.yml configuration format.
type Config struct {
	Version   VersionConfig         `yaml:"version"`
	Envs      map[string]EnvConfig  `yaml:"envs"`
	Steps     map[string]StepConfig `yaml:"steps"`
	Pipelines map[string][]string   `yaml:"pipelines"`

	// Set by the loader, not from YAML.
	Dir      string `yaml:"-"`
	FilePath string `yaml:"-"`
}

// VersionConfig selects how the version label of a run is derived.
type VersionConfig struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// EnvConfig defines a single environment.
type EnvConfig struct {
	Type           string            `yaml:"type"`
	Dir            string            `yaml:"dir"`
	DeleteWhenDone *bool             `yaml:"deleteWhenDone,omitempty"` // default true
	Attributes     map[string]string `yaml:"attributes"`
	Probe          []string          `yaml:"probe"`
	Requirements   Requirements      `yaml:"requirements"`
}

// StepConfig defines a single step.
type StepConfig struct {
	Type         string          `yaml:"type"`
	Command      string          `yaml:"command"`
	Template     *TemplateConfig `yaml:"template,omitempty"`
	Generate     *GenerateConfig `yaml:"generate,omitempty"`
	Requirements Requirements    `yaml:"requirements"`
}

// FileFilter defines include/exclude glob patterns.
type FileFilter struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// TemplateConfig configures the template step.
type TemplateConfig struct {
	Files FileFilter `yaml:"files"`
}

// GenerateConfig configures the generate step.
type GenerateConfig struct {
	Output   string `yaml:"output"`
	Template string `yaml:"template"`
}

// RequirementConfig is one named entry of a requirements mapping. Exactly one
// of the comparison fields is expected to be set.
type RequirementConfig struct {
	Name      string  `yaml:"-"`
	Reason    string  `yaml:"reason"`
	Key       string  `yaml:"key"`
	Equals    *string `yaml:"equals,omitempty"`
	NotEquals *string `yaml:"not_equals,omitempty"`
	Matches   *string `yaml:"matches,omitempty"`
}

// Comparisons returns every comparison kind set on the requirement together
// with its expected value.
func (r RequirementConfig) Comparisons() map[string]string {
	set := make(map[string]string)
	if r.Equals != nil {
		set[CompareEquals] = *r.Equals
	}
	if r.NotEquals != nil {
		set[CompareNotEquals] = *r.NotEquals
	}
	if r.Matches != nil {
		set[CompareMatches] = *r.Matches
	}
	return set
}

// Requirements is an ordered requirements mapping. YAML mapping order is kept.
type Requirements []RequirementConfig

// StepKind returns the step type, defaulting to command.
func (s StepConfig) StepKind() string {
	if s.Type == "" {
		return StepTypeCommand
	}
	return s.Type
}

// EnvKind returns the environment type, defaulting to local.
func (e EnvConfig) EnvKind() string {
	if e.Type == "" {
		return EnvTypeLocal
	}
	return e.Type
}
