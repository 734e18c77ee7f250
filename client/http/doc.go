/*
Package http provides a transport for the beacon client that uses drand's
JSON HTTP API (https://drand.love/developer/http-api/).

The client issues exactly one GET request per call and does not verify what it
receives: rounds are returned as chain.RawRandomness and must go through
chain.RawRandomness.Verify, which the client package does for you.

Use "Instrument" to wrap a transport with OpenTelemetry tracing.
*/
package http
