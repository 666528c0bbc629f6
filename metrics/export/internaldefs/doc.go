// Package internaldefs exposes stable metric name and bucket
// definitions shared by exporter implementations, so every exporter
// renders identical names and boundaries.
package internaldefs
