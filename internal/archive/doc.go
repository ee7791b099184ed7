// Package archive extracts the proxy binary from downloaded release
// archives (gzip-compressed tar).
package archive
