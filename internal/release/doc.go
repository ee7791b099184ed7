// Package release resolves and downloads veil release artifacts from the
// upstream feed.
//
// Resolution supports two strategies behind one interface: a structured
// GitHub API client and a best-effort text scan over the raw feed body,
// selected once per run with the structured path preferred.
package release
