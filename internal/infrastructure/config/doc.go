// Package config handles loading and validating stagelink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with STAGELINK_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// One file format serves both roles. The coordinator reads mqtt, radio,
// coordinator, database, influxdb and api; a panel reads radio and panel.
//
// Security Considerations:
//   - Broker credentials and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Name)
package config
