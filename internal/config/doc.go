// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// and an optional .env file is read before expansion. The Redis connection
// parameters can also be overridden directly with REDIS_HOST, REDIS_PORT,
// REDIS_PASSWORD and REDIS_DB.
//
// Every field has a default, so an agent can start with no config file at all.
package config
