// Package config handles loading and validating SSC Monitor configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The receiver list is static: it is read once at startup and never
// reloaded. Each entry names a receiver's state key, display name,
// IP address and SSC port.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(cfg.Receivers))
package config
