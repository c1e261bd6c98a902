// Package scenario loads benchmark scenario definitions from HCL grid files.
// A scenario names a Stan program, the dataset to condition it on, the
// sampling function with its tuning parameters, and where the resulting fit
// artifact should be written. Grid paths may point at a single .hcl file or a
// directory that is searched recursively.
package scenario
