// Package fixtures holds the data the scenarios type into the forge:
// credentials, the project to create and the repository to create through
// the API. Values come from built-in defaults, then an optional YAML file,
// then the environment.
package fixtures

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/forge-e2e/internal/config"
)

// Fixtures is the full fixture set.
type Fixtures struct {
	Credentials Credentials `yaml:"credentials"`
	Project     Project     `yaml:"project"`
	Repo        Repo        `yaml:"repo"`
}

type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Org owns the projects. Empty means Username.
	Org   string `yaml:"org"`
	Token string `yaml:"token"`
}

// Project is what the create-project scenario enters.
type Project struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Template    string `yaml:"template"`
	CardPreview string `yaml:"card_preview"`
}

// Repo is what the API scenario creates and deletes.
type Repo struct {
	Name    string `yaml:"name"`
	Private bool   `yaml:"private"`
}

// Default returns the built-in fixture set.
func Default() Fixtures {
	return Fixtures{
		Credentials: Credentials{
			Username: "maias",
			Password: "maias123",
		},
		Project: Project{
			Title:       "Test1 Project",
			Description: "This is a test project description.",
			Template:    "None",
			CardPreview: "Images and Text",
		},
		Repo: Repo{
			Name:    "newRepoAPITest",
			Private: false,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected so a typo does not silently fall back.
func Load(path string) (Fixtures, error) {
	f := Default()
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read fixtures: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	return f, nil
}

// FromConfig loads cfg.FixturesPath and applies the FORGE_* overrides in cfg.
func FromConfig(cfg *config.Config) (Fixtures, error) {
	f, err := Load(cfg.FixturesPath)
	if err != nil {
		return f, err
	}
	return f.Override(cfg), nil
}

// Override replaces credential fields with the non-empty values in cfg.
func (f Fixtures) Override(cfg *config.Config) Fixtures {
	if cfg.Username != "" {
		f.Credentials.Username = cfg.Username
	}
	if cfg.Password != "" {
		f.Credentials.Password = cfg.Password
	}
	if cfg.Org != "" && cfg.Org != cfg.Username {
		f.Credentials.Org = cfg.Org
	}
	if cfg.APIToken != "" {
		f.Credentials.Token = cfg.APIToken
	}
	return f
}

// Owner is the account the project pages live under.
func (c Credentials) Owner() string {
	if c.Org != "" {
		return c.Org
	}
	return c.Username
}

// Validate reports every field a scenario cannot run without.
func (f Fixtures) Validate() error {
	var problems []string
	if f.Credentials.Username == "" {
		problems = append(problems, "credentials.username is required")
	}
	if f.Project.Template == "" {
		problems = append(problems, "project.template is required")
	}
	if f.Project.CardPreview == "" {
		problems = append(problems, "project.card_preview is required")
	}
	if f.Repo.Name == "" {
		problems = append(problems, "repo.name is required")
	}
	if len(problems) > 0 {
		return &config.ValidationError{Errors: problems}
	}
	return nil
}
