// Package platform maps host CPU identifiers to upstream release
// architecture tags.
package platform
