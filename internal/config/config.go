package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"caseline/internal/workflow"
)

// Config models caseline.yml.
type Config struct {
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`
	Storage struct {
		UploadDir  string `yaml:"upload_dir"`
		ReportsDir string `yaml:"reports_dir"`
	} `yaml:"storage"`
	Workflow struct {
		// Strict rejects stage advances to names outside the case type's
		// list. Default is the permissive historical behavior.
		Strict         bool           `yaml:"strict"`
		TerminalStages []string       `yaml:"terminal_stages"`
		Types          []WorkflowType `yaml:"types"`
	} `yaml:"workflow"`
	Deadline struct {
		WarningDays int `yaml:"warning_days"`
	} `yaml:"deadline"`
}

type WorkflowType struct {
	Name   string   `yaml:"name"`
	Stages []string `yaml:"stages"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run cl init or pass --config", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("config.service.name is required")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("config.storage.upload_dir is required")
	}
	if c.Storage.ReportsDir == "" {
		return fmt.Errorf("config.storage.reports_dir is required")
	}
	if len(c.Workflow.Types) == 0 {
		return fmt.Errorf("config.workflow.types is required")
	}
	seen := map[string]bool{}
	for _, wt := range c.Workflow.Types {
		name := strings.TrimSpace(wt.Name)
		if name == "" {
			return fmt.Errorf("config.workflow.types contains an unnamed type")
		}
		if seen[name] {
			return fmt.Errorf("case type %s declared twice", name)
		}
		seen[name] = true
		if len(wt.Stages) == 0 {
			return fmt.Errorf("case type %s has no stages", name)
		}
		for _, s := range wt.Stages {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("case type %s has an empty stage name", name)
			}
		}
	}
	if c.Deadline.WarningDays <= 0 {
		return fmt.Errorf("config.deadline.warning_days must be positive")
	}
	return nil
}

// Workflows builds the stage table from the config.
func (c *Config) Workflows() (*workflow.Table, error) {
	stages := make(map[string][]string, len(c.Workflow.Types))
	var order []string
	for _, wt := range c.Workflow.Types {
		stages[wt.Name] = wt.Stages
		order = append(order, wt.Name)
	}
	return workflow.New(stages, order, c.Workflow.TerminalStages)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "caseline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `service:
  name: caseline

storage:
  upload_dir: uploads
  reports_dir: reports

workflow:
  strict: false
  terminal_stages: [Finalizado, Arquivado]
  types:
    - name: PAD
      stages: [Autuado, "Instrução", "Relatório Final", Julgamento, Finalizado]
    - name: "Sindicância"
      stages: [Autuado, "Apuração", "Relatório Final", Arquivado]
    - name: Tomada de Conta Especial
      stages: ["Instauração", "Citação", Defesa, "Relatório", Julgamento, Finalizado]
    - name: Processo Administrativo Especial
      stages: ["Autuação", "Instrução", "Decisão", Finalizado]

deadline:
  warning_days: 7
`
