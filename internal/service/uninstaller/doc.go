// Package uninstaller tears a veil deployment down after explicit
// confirmation: stop and disable the unit, then remove the unit file,
// binary, wrapper, configuration directory and service account, treating
// missing artifacts as warnings.
package uninstaller
