// Package config loads the immutable placement configuration.
//
// Configuration is a CUE file validated against the embedded #Config schema,
// which also supplies every default. Environment variables override the file:
//
//	PLACEMENT_DB            database
//	PLACEMENT_TZ            time_zone
//	PLACEMENT_PUBLISH_CRON  publish_schedule
//	PLACEMENT_LOG_LEVEL     log_level
//
// LoadDotEnv reads a .env file into the environment before Load runs.
package config
