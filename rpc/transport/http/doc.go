// Package http implements the RPC transport over HTTP. Every request is a
// POST of the serialized message to /{shardId}; the response body carries
// the serialized reply.
//
// The server additionally serves the process and database metrics in the
// Prometheus text format on GET /metrics. With log level debug every request
// is logged together with its status and duration.
//
// The client spreads requests round robin over all configured endpoints and
// retries a failed request on the next endpoint. Endpoints without a scheme
// are treated as http://host:port. The client is safe for concurrent use.
package http
