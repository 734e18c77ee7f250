/*
Package client retrieves rounds of randomness from a drand beacon network and
verifies each of them against the public key of its chain.

A Registry holds chains with their metadata attached. It is built either from
the network's chain listing with AvailableChains, from the League of Entropy
default chain with WellKnownChain, or from a single chain hash with ForChain.
NewChain builds a Chain from chain info you already trust, without fetching it.

Chain.Round and Chain.Latest return one of three outcomes:

	a *chain.VerifiedRandomness
		the round verified against the chain public key.

	nil and a nil error
		the server returned a well formed round that does not verify.
		Do not trust it.

	an error
		matching one of drand.ErrTransport, drand.ErrInvalidResponse,
		drand.ErrMalformedHex, drand.ErrInvalidPoint or drand.ErrVerification.

Nothing is cached or retried: every call performs exactly one request.

By default data is fetched from DefaultEndpoint over HTTP. The following
options are likely to be needed/customized:

	WithEndpoint()
		points the client at another HTTP relay.

	WithFetcher()
		replaces HTTP with another transport.

	WithPrometheus()
		enables metrics reporting on requests and verification outcomes to a
		provided prometheus registry.
*/
package client
