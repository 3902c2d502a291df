// Package config loads the session configuration.
//
// Sources are layered, later ones overriding earlier ones:
//
//  1. compiled-in defaults
//  2. a TOML or YAML file, chosen by extension
//  3. VMDB_ environment variables
//
// Command-line flags are applied by the caller on the decoded Config.
// Environment variables map onto setting paths by section, so
// VMDB_SESSION_TICK_MS sets session.tickMs. A few short aliases exist:
// VMDB_HOST, VMDB_PORT, VMDB_ELF, VMDB_GDB, VMDB_LOG_LEVEL and VMDB_LOG_FILE.
package config
