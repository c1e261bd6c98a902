// Package stan implements a client for the v1 REST interface of
// httpstan-compatible model servers. Identifiers returned by the server
// (model, operation and fit names) are opaque resource paths and are passed
// back verbatim in later calls.
package stan
