// Package config fills env-tagged structs from the process environment.
//
// Load parses a struct with caarlos0/env. Every package in this module that
// needs settings (session.Config, queue.Config, the redis, pg and mongo
// integration configs) declares its own tagged struct and loads it here:
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// MustLoad panics instead of returning the error and belongs in main.
//
// # Dotenv
//
// The first Load in the process reads a .env file from the working directory
// through joho/godotenv. A missing file is ignored and variables that are
// already set keep their values.
//
// # Cache
//
// Results are kept in a sync.Map keyed by the struct type. The environment is
// parsed once per type; later calls copy the cached value, so changing a
// variable after the first Load of that type has no effect. Two different
// types never share an entry even when their fields overlap.
//
// # Errors
//
// A nil target returns ErrNilConfig. Parse failures, such as a missing
// required variable or a malformed duration, are wrapped with the type name
// and are not cached, so a corrected environment can be loaded again.
package config
