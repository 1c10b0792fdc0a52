package config

import "gopkg.in/yaml.v3"

// Defaults returns the built-in configuration parsed from the embedded
// defaults.yaml. Environment variables in Load override these values.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}
