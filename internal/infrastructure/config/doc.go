// Package config loads the gpioled configuration.
//
// Load starts from built-in defaults, overlays the YAML file, applies
// GPIOLED_* environment overrides and then validates the result. Every
// validation failure is reported, not just the first.
//
// Keep credentials out of the file where possible: the JWT secret, MQTT
// password and InfluxDB token all have environment overrides, and the
// API refuses to start without a JWT secret of at least 32 characters.
//
//	cfg, err := config.Load(config.Path())
//	if err != nil {
//	    return err
//	}
package config
