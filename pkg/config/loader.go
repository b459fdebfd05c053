package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// Load reads an AnalysisConfig from a YAML file. Environment variable
// references of the form ${VAR} are substituted before parsing, so
// machine-specific trace and output directories can stay out of the file
// itself.
func Load(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFile, "failed to read config file %s", path)
	}

	expanded := substituteEnvVars(string(data))

	cfg := DefaultAnalysisConfig("")
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "failed to parse config file %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes an AnalysisConfig to a YAML file.
func Save(cfg *AnalysisConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to write config file %s", path)
	}
	return nil
}

// substituteEnvVars replaces ${VAR} references with environment values.
// Unset variables substitute as empty strings.
func substituteEnvVars(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			b.WriteString(s)
			break
		}
		end += start

		b.WriteString(s[:start])
		name := s[start+2 : end]
		b.WriteString(os.Getenv(name))
		s = s[end+1:]
	}
	return b.String()
}
