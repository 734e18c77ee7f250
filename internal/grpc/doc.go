/*
Package grpc provides a transport for the beacon client that uses the public
gRPC service of a drand node.

The service has no chain listing, so the client cannot be used with
client.AvailableChains; use client.ForChain or client.NewChain instead.

Note that the gRPC client does not verify results: it hands rounds to the
client package, which does.
*/
package grpc
