// Package types defines the repository metrics snapshot shared by the server's
// ingestion paths (REST, gRPC) and the alert evaluator. These are the canonical
// in-memory representations, separate from any wire format.
package types
