// Package config handles loading and validating MusaLCE server configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with MUSALCE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// The defaults match what the DAW extensions expect (OSC listener on port
// 11011, DAW endpoint localhost:10001) so no file is needed for a local setup.
//
// Usage:
//
//	cfg, err := config.Load(config.DefaultPath)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.OSC.ListenPort)
package config
