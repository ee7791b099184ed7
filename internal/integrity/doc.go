// Package integrity verifies downloaded artifacts against the
// algorithm-prefixed digests published in the release feed.
package integrity
