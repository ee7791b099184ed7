// Package config defines the two persisted configuration entities of the
// deployer and provides helpers to load, validate and save them.
//
// Settings is the optional YAML deployment layout (paths, release source,
// timeouts). Runtime is the two-field PORT/PASSWORD file consumed by the
// generated wrapper at every service start; its plain KEY=value format is a
// contract with that shell script and must not change.
package config
