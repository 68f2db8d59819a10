// Package config handles loading and validating lumen configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with LUMEN_* environment variables
//   - Validation of every section, reporting all problems at once
//   - Default value handling, so lumen runs without a config file
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	path, explicit := config.ResolvePath(flagPath)
//	cfg, err := config.Load(path)
//	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
//	    cfg, err = config.LoadDefaults()
//	}
package config
