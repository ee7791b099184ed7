// Package installer performs a fresh veil deployment: it fetches and
// verifies the latest release, installs the binary, provisions the service
// account and runtime configuration, and brings the systemd unit up.
//
// The workflow is sequential and non-resumable; any failing step aborts the
// run with no rollback of completed steps.
package installer
