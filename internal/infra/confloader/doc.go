// Package confloader provides configuration loading mechanism.
//
// This package implements a flexible configuration loader that
// supports multiple sources using koanf as the underlying library.
//
// Features:
//
//   - Multiple Sources: Files, environment variables, maps
//   - YAML configuration files
//   - Watch Support: Automatic reload on config file changes
//   - Type Safety: Unmarshaling into typed structs
//
// Priority (highest to lowest):
//
//  1. Environment variables (KVMESH_ prefix)
//  2. Configuration file
//  3. Default values
package confloader
