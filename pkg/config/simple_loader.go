package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/colstream/qpipe/pkg/qerrors"
)

// Load reads a YAML file, substitutes ${VAR_NAME} environment references,
// and unmarshals the result into config (typically a *PipelineConfig).
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return qerrors.Wrap(err, qerrors.TypeInvalidUserArgument, "read config file")
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return qerrors.Wrap(err, qerrors.TypeInvalidUserArgument, "parse config YAML")
	}
	return nil
}

// Save marshals config to YAML and writes it to filePath.
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return qerrors.Wrap(err, qerrors.TypeInvalidUserArgument, "marshal config YAML")
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return qerrors.Wrap(err, qerrors.TypeInvalidUserArgument, "write config file")
	}
	return nil
}

// substituteEnvVars replaces every ${VAR_NAME} in content with the
// environment variable's value (empty string if unset).
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		content = content[:start] + os.Getenv(varName) + content[end+1:]
	}
	return content
}
