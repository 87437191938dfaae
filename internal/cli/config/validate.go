package config

import "fmt"

// validOutputModes lists the accepted values for the output option.
var validOutputModes = map[string]bool{
	"":         true, // treated as auto
	"auto":     true,
	"text":     true,
	"markdown": true,
	"json":     true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !validOutputModes[c.OutputFormat] {
		return fmt.Errorf("invalid output format %q (valid formats are auto, text, markdown, and json)", c.OutputFormat)
	}
	if len(c.Paths) == 0 {
		return fmt.Errorf("paths must not be empty; use \".\" to scan the project root")
	}
	if c.Cache && c.StatePath == "" {
		return fmt.Errorf("state_path is required when the cache is enabled")
	}
	return nil
}
