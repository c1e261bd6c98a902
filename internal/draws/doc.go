// Package draws reads and writes the binary artifact an httpstan-compatible
// server stores for a fit: a stream of length-delimited protobuf messages,
// one per writer callback, each tagged with the topic it was emitted on.
package draws
