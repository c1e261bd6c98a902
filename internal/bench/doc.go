// Package bench runs benchmark scenarios against a model server. Each
// scenario is executed strictly in order, compile then fit then poll then
// download, and produces one result with phase timings and the exact
// artifact bytes the server returned.
package bench
