// Package receiver implements the gRPC ingestion endpoint for repository
// metrics snapshots.
//
// The service is repowatch.v1.MetricsService with a single unary method,
// SubmitSnapshot. Requests and responses are google.protobuf.Struct values,
// so no generated code is needed on either side:
//
//	request:  {"repository": "org/repo", "metrics": {<pkg/types.Snapshot JSON>}}
//	response: {"alerts": [<alert>, ...]}
//
// The handler validates the request (codes.InvalidArgument when the
// repository or metrics are missing or malformed), runs the snapshot through
// the alert engine, records it in the snapshot store and returns the alerts
// that were created or changed in severity. Authentication is enforced
// upstream by the server interceptor (see package auth).
//
// Client is the matching caller used by the submit command.
//
// Tests use testify, as in packages alerts and notify, because they compare
// decoded alert records and gRPC status codes.
package receiver
