package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"vigia/internal/domain"
)

// Config models vigia.yml: session reference data (users, rules) plus the
// thresholds the reporting layer derives metrics against.
type Config struct {
	Project struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	SLA struct {
		// ResolutionHours is the time-to-resolution threshold a review must
		// beat to count as SLA-compliant.
		ResolutionHours int `yaml:"resolution_hours"`
	} `yaml:"sla"`
	Adherence struct {
		Weights map[string]float64 `yaml:"weights"`
	} `yaml:"adherence"`
	Users []SeedUser              `yaml:"users"`
	Rules []domain.TransitionRule `yaml:"rules"`
}

// SeedUser is the YAML form of a reference user.
type SeedUser struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Role   string `yaml:"role"`
	Team   string `yaml:"team"`
	Center string `yaml:"center"`
}

// User converts the seed into a domain user, validating the role.
func (u SeedUser) User() (domain.User, error) {
	role, err := domain.ParseRole(u.Role)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return domain.User{
		ID:       u.ID,
		Name:     u.Name,
		Role:     role,
		Team:     domain.Team(u.Team),
		Center:   domain.Center(u.Center),
		Position: u.Role,
	}, nil
}

// WeightFor returns the adherence weight of a tag level.
func (c *Config) WeightFor(level domain.TagLevel) float64 {
	return c.Adherence.Weights[string(level)]
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.SLA.ResolutionHours <= 0 {
		return fmt.Errorf("config.sla.resolution_hours must be positive")
	}
	if len(c.Adherence.Weights) == 0 {
		return fmt.Errorf("config.adherence.weights is required")
	}
	for _, level := range domain.TagLevels {
		w, ok := c.Adherence.Weights[string(level)]
		if !ok {
			return fmt.Errorf("config.adherence.weights missing level %s", level)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("weight for %s out of range [0,1]", level)
		}
	}
	for key := range c.Adherence.Weights {
		if _, err := domain.ParseTagLevel(key); err != nil {
			return fmt.Errorf("config.adherence.weights: %w", err)
		}
	}
	seenUsers := map[string]bool{}
	for _, u := range c.Users {
		if u.ID == "" {
			return fmt.Errorf("config.users contains empty user id")
		}
		if seenUsers[u.ID] {
			return fmt.Errorf("config.users duplicates id %s", u.ID)
		}
		seenUsers[u.ID] = true
		if _, err := u.User(); err != nil {
			return err
		}
	}
	seenRules := map[string]bool{}
	for _, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule %q has empty id", r.Name)
		}
		if seenRules[r.ID] {
			return fmt.Errorf("config.rules duplicates id %s", r.ID)
		}
		seenRules[r.ID] = true
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "vigia.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with vigia config init", path)
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

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, projectID))).Decode(&cfg)
	cfg.Project.ID = projectID
	return &cfg
}

const defaultTemplate = `project:
  id: %s
  name: Monitoreo de Calidad

sla:
  resolution_hours: 48

adherence:
  weights:
    Alto: 1.0
    Medio Alto: 0.75
    Medio Bajo: 0.5
    Bajo: 0.25

users:
  - id: u-tl-1
    name: Laura Méndez
    role: Team Leader
    team: Mediaciones PNR
    center: HSP
  - id: u-sup-1
    name: Carlos Paredes
    role: Supervisor
    team: Fintech Pagos
    center: HSP
  - id: u-ger-1
    name: Valentina Ruiz
    role: Gerente
    team: Mercado Envíos
    center: BR
  - id: u-adm-1
    name: Sistema QA
    role: Administrador
    team: Mktpl Vendedor
    center: HSP

rules:
  - id: regla-espera-prioridad
    name: Escalamiento por espera
    conditions:
      source_queue: General
      statuses: [Pendiente]
      wait_minutes: 120
    action:
      destination_queue: Prioridad
      notify: [Supervisor]
      priority: alta
    active: true
  - id: regla-adhesion-alta
    name: Adhesión alta a Supervisión
    conditions:
      source_queue: General
      tag_levels: [Alto]
    action:
      destination_queue: Supervisión
      notify: [Supervisor, Gerente]
    active: true
`
