// Package updater upgrades an existing veil deployment to the latest
// release: verify preconditions, download and verify the new binary, stop
// the service, swap the binary atomically, and bring the service back up.
//
// The runtime configuration is never touched; it has exactly one source of
// truth written by the installer.
package updater
