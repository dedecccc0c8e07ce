package models

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

const (
	DefaultConfigFile = "github_config.json"
	DefaultOutputFile = "repos_with_secrets_and_collaborators.json"

	ScmGitHub = "github"
	ScmGitLab = "gitlab"
)

type Config struct {
	AccessToken string `mapstructure:"access_token" json:"access_token"`
	OrgName     string `mapstructure:"org_name" json:"org_name"`
	BaseURL     string `mapstructure:"base_url" json:"base_url,omitempty"`
	Scm         string `mapstructure:"scm" json:"scm,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{Scm: ScmGitHub}
}

// LoadConfig reads a JSON config file. The environment is not consulted.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("scm", ScmGitHub)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.AccessToken == "" {
		errs = append(errs, errors.New("access_token must be set"))
	}
	if c.OrgName == "" {
		errs = append(errs, errors.New("org_name must be set"))
	}
	switch c.Scm {
	case ScmGitHub, ScmGitLab:
	default:
		errs = append(errs, fmt.Errorf("unsupported scm %q", c.Scm))
	}
	return errors.Join(errs...)
}
