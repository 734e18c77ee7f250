package client_test

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/drand/drand/v2/common/testlogger"
	"github.com/drand/drand/v2/crypto"
	clock "github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/drand/go-beacon/chain"
	"github.com/drand/go-beacon/client"
	drandhttp "github.com/drand/go-beacon/client/http"
	clientMock "github.com/drand/go-beacon/client/mock"
	httpmock "github.com/drand/go-beacon/client/test/http/mock"
	"github.com/drand/go-beacon/client/test/result/mock"
	"github.com/drand/go-beacon/drand"
	"github.com/drand/go-beacon/internal/metrics"
)

const loeInfoJSON = `{"public_key":"868f005eb8e6e4ca0a47c8a77ceaa5309a47978a7c71bc5cce96366b5d7a569937c529eeda66c7293784a9402801af31",` +
	`"period":30,"genesis_time":1595431050,"hash":"8990e7a9aaed2ffed73dbd7092123d6f289930540d7651336225dc172e51b2ce",` +
	`"groupHash":"176f93498eac9ca337150b46d21dd58673ea4e3581185f869672e59fa4cb390a","schemeID":"pedersen-bls-chained"}`

func verifiableChain(t *testing.T, n int) *mock.Chain {
	t.Helper()
	sch, err := crypto.GetSchemeByID(crypto.DefaultSchemeID)
	require.NoError(t, err)
	return mock.VerifiableChain(n, sch)
}

func serve(t *testing.T, chains ...*mock.Chain) (*httpmock.Server, []client.Option) {
	t.Helper()
	srv := httpmock.NewMockHTTPPublicServer(t, chains...)
	return srv, []client.Option{
		client.WithEndpoint(srv.URL()),
		client.WithLogger(testlogger.New(t)),
	}
}

func TestAvailableChains(t *testing.T) {
	ctx := context.Background()
	a, b := verifiableChain(t, 3), verifiableChain(t, 3)
	srv, opts := serve(t, a, b)

	reg, err := client.AvailableChains(ctx, opts...)
	require.NoError(t, err)
	require.Len(t, reg.Chains, 2)
	require.Equal(t, a.Hash(), reg.Chains[0].Hash)
	require.Equal(t, b.Hash(), reg.Chains[1].Hash)
	require.Equal(t, *a.Info, reg.Chains[0].Info)
	require.Equal(t, reg.Chains[0].Hash, reg.Chains[0].Info.Hash)

	require.Equal(t, []string{"/chains", "/" + a.Hash() + "/info", "/" + b.Hash() + "/info"}, srv.Requests())

	c, ok := reg.Chain(b.Hash())
	require.True(t, ok)
	require.Same(t, reg.Chains[1], c)
}

func TestAvailableChainsWithFetcher(t *testing.T) {
	a, b := verifiableChain(t, 2), verifiableChain(t, 2)
	f := clientMock.FetcherWithChains(a, b)

	reg, err := client.AvailableChains(context.Background(), client.WithFetcher(f), client.WithLogger(testlogger.New(t)))
	require.NoError(t, err)
	require.Len(t, reg.Chains, 2)
	require.Equal(t, []string{"chains", "info/" + a.Hash(), "info/" + b.Hash()}, f.Calls)
}

func TestAvailableChainsInvalidListing(t *testing.T) {
	for _, body := range []string{`{"chains":["abc"]}`, `[1,2]`, `null`, `"abc"`} {
		srv, opts := serve(t, verifiableChain(t, 2))
		srv.Override("/chains", http.StatusOK, body)

		_, err := client.AvailableChains(context.Background(), opts...)
		require.ErrorIs(t, err, drand.ErrInvalidResponse, body)

		var ire *drand.InvalidResponseError
		require.ErrorAs(t, err, &ire)
		require.Equal(t, body, ire.Raw)
	}
}

func TestAvailableChainsTransportError(t *testing.T) {
	srv, opts := serve(t, verifiableChain(t, 2))
	srv.Override("/chains", http.StatusInternalServerError, "oops")

	_, err := client.AvailableChains(context.Background(), opts...)
	require.ErrorIs(t, err, drand.ErrTransport)

	var te *drand.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusInternalServerError, te.StatusCode)
}

func TestAvailableChainsHashMismatch(t *testing.T) {
	a := verifiableChain(t, 2)
	srv, opts := serve(t, a)
	srv.Override("/"+a.Hash()+"/info", http.StatusOK, loeInfoJSON)

	_, err := client.AvailableChains(context.Background(), opts...)
	require.ErrorIs(t, err, drand.ErrInvalidChainHash)
}

func TestAvailableChainsInvalidInfo(t *testing.T) {
	a := verifiableChain(t, 2)
	srv, opts := serve(t, a)
	srv.Override("/"+a.Hash()+"/info", http.StatusOK,
		`{"public_key":"`+a.Info.PublicKey+`","period":0,"genesis_time":1595431050,"hash":"`+a.Hash()+`"}`)

	_, err := client.AvailableChains(context.Background(), opts...)
	require.ErrorIs(t, err, drand.ErrInvalidResponse)
	require.ErrorContains(t, err, "period")
}

func TestNewChainInvalidInfo(t *testing.T) {
	c := verifiableChain(t, 2)
	info := *c.Info
	info.Period = 0

	_, err := client.NewChain(c.Hash(), &info, client.WithFetcher(clientMock.FetcherWithChains(c)))
	require.Error(t, err)

	info = *c.Info
	info.PublicKey = info.PublicKey[2:]
	_, err = client.NewChain(c.Hash(), &info, client.WithFetcher(clientMock.FetcherWithChains(c)))
	require.ErrorIs(t, err, drand.ErrMalformedHex)
}

func TestClose(t *testing.T) {
	c := verifiableChain(t, 2)
	f := clientMock.FetcherWithChains(c)

	reg, err := client.ForChain(context.Background(), c.Hash(), client.WithFetcher(f))
	require.NoError(t, err)
	require.NoError(t, reg.Close())
	require.Equal(t, 1, f.Closed)

	require.NoError(t, reg.Chains[0].Close())
	require.Equal(t, 2, f.Closed)

	// the default HTTP transport closes too
	srv, opts := serve(t, c)
	reg, err = client.ForChain(context.Background(), c.Hash(), opts...)
	require.NoError(t, err)
	require.NoError(t, reg.Close())
	require.Len(t, srv.Requests(), 1)
}

func TestWellKnownChain(t *testing.T) {
	srv, opts := serve(t)
	srv.Override("/"+client.LeagueOfEntropyHash+"/info", http.StatusOK, loeInfoJSON)

	reg, err := client.WellKnownChain(context.Background(), opts...)
	require.NoError(t, err)
	require.Len(t, reg.Chains, 1)
	require.Equal(t, client.LeagueOfEntropyHash, reg.Chains[0].Hash)
	require.Equal(t, uint64(30), reg.Chains[0].Info.Period)
	require.Equal(t, []string{"/" + client.LeagueOfEntropyHash + "/info"}, srv.Requests())
}

func TestChainRound(t *testing.T) {
	ctx := context.Background()
	c := verifiableChain(t, 5)
	_, opts := serve(t, c)

	reg, err := client.ForChain(ctx, c.Hash(), opts...)
	require.NoError(t, err)
	ch := reg.Chains[0]

	vr, err := ch.Round(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, vr)
	require.Equal(t, uint64(3), vr.GetRound())
	require.Equal(t, c.Rounds[2].Signature, hex.EncodeToString(vr.GetSignature()))
	require.Equal(t, c.Rounds[2].Randomness, hex.EncodeToString(vr.GetRandomness()))
	require.Equal(t, c.Rounds[2].PreviousSignature, hex.EncodeToString(vr.GetPreviousSignature()))
}

func TestChainRoundZeroIsLatest(t *testing.T) {
	ctx := context.Background()
	c := verifiableChain(t, 4)
	srv, opts := serve(t, c)

	reg, err := client.ForChain(ctx, c.Hash(), opts...)
	require.NoError(t, err)
	ch := reg.Chains[0]

	zero, err := ch.Round(ctx, 0)
	require.NoError(t, err)
	latest, err := ch.Latest(ctx)
	require.NoError(t, err)

	require.NotNil(t, zero)
	require.Equal(t, latest, zero)
	require.Equal(t, uint64(4), zero.GetRound())

	reqs := srv.Requests()
	require.Equal(t, "/"+c.Hash()+"/public/latest", reqs[len(reqs)-1])
	require.Equal(t, "/"+c.Hash()+"/public/latest", reqs[len(reqs)-2])
}

func TestChainRoundRejected(t *testing.T) {
	ctx := context.Background()
	c := verifiableChain(t, 4)
	srv, opts := serve(t, c)
	srv.Tamper(func(r *chain.RawRandomness) {
		// a valid signature, but for another round
		r.Signature = c.Rounds[0].Signature
		r.Randomness = c.Rounds[0].Randomness
	})

	reg, err := client.ForChain(ctx, c.Hash(), opts...)
	require.NoError(t, err)

	vr, err := reg.Chains[0].Round(ctx, 3)
	require.NoError(t, err)
	require.Nil(t, vr)
}

func TestChainRoundMismatch(t *testing.T) {
	ctx := context.Background()
	c := verifiableChain(t, 4)
	srv, opts := serve(t, c)
	srv.Tamper(func(r *chain.RawRandomness) {
		*r = c.Rounds[1]
	})

	reg, err := client.ForChain(ctx, c.Hash(), opts...)
	require.NoError(t, err)

	_, err = reg.Chains[0].Round(ctx, 3)
	require.ErrorIs(t, err, drand.ErrInvalidResponse)
	require.ErrorContains(t, err, "round mismatch (malicious relay): 2 != 3")
}

func TestChainRoundInvalidBody(t *testing.T) {
	ctx := context.Background()
	c := verifiableChain(t, 4)
	srv, opts := serve(t, c)

	reg, err := client.ForChain(ctx, c.Hash(), opts...)
	require.NoError(t, err)
	ch := reg.Chains[0]

	for _, body := range []string{`{"round":3}`, `[]`, `{"round":"3","randomness":"","signature":"","previous_signature":""}`} {
		srv.Override("/"+c.Hash()+"/public/3", http.StatusOK, body)
		vr, err := ch.Round(ctx, 3)
		require.Nil(t, vr)
		require.ErrorIs(t, err, drand.ErrInvalidResponse, body)
	}

	srv.Override("/"+c.Hash()+"/public/3", http.StatusNotFound, "")
	_, err = ch.Round(ctx, 3)
	require.ErrorIs(t, err, drand.ErrTransport)
}

func TestChainRoundMalformedHex(t *testing.T) {
	ctx := context.Background()
	c := verifiableChain(t, 4)
	srv, opts := serve(t, c)
	srv.Tamper(func(r *chain.RawRandomness) {
		r.Signature = r.Signature[:94]
	})

	reg, err := client.ForChain(ctx, c.Hash(), opts...)
	require.NoError(t, err)

	_, err = reg.Chains[0].Round(ctx, 2)
	require.ErrorIs(t, err, drand.ErrMalformedHex)
}

func TestNewChain(t *testing.T) {
	c := verifiableChain(t, 3)
	f := clientMock.FetcherWithChains(c)

	ch, err := client.NewChain(c.Hash(), c.Info, client.WithFetcher(f))
	require.NoError(t, err)

	vr, err := ch.Round(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, vr)
	require.Equal(t, []string{"public/" + c.Hash() + "/2"}, f.Calls)

	other := verifiableChain(t, 1)
	_, err = client.NewChain(other.Hash(), c.Info, client.WithFetcher(f))
	require.ErrorIs(t, err, drand.ErrInvalidChainHash)
}

func TestChainRoundCanceled(t *testing.T) {
	c := verifiableChain(t, 3)
	f := clientMock.FetcherWithChains(c)
	f.Delay = time.Minute

	ch, err := client.NewChain(c.Hash(), c.Info, client.WithFetcher(f))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ch.Round(ctx, 2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestChainFetcherError(t *testing.T) {
	c := verifiableChain(t, 3)
	f := clientMock.FetcherWithChains(c)
	boom := errors.New("boom")
	f.Err = boom

	_, err := client.AvailableChains(context.Background(), client.WithFetcher(f))
	require.ErrorIs(t, err, boom)
}

func TestChainCurrentRound(t *testing.T) {
	c := verifiableChain(t, 3)
	genesis := time.Unix(c.Info.GenesisTime, 0)
	clk := clock.NewFakeClockAt(genesis.Add(-time.Minute))

	ch, err := client.NewChain(c.Hash(), c.Info,
		client.WithFetcher(clientMock.FetcherWithChains(c)),
		client.WithClock(clk),
	)
	require.NoError(t, err)

	require.Equal(t, uint64(0), ch.CurrentRound())
	require.Equal(t, genesis, ch.NextRoundTime())

	clk.Advance(time.Minute)
	require.Equal(t, uint64(1), ch.CurrentRound())
	clk.Advance(mock.Period * 2)
	require.Equal(t, uint64(3), ch.CurrentRound())
	require.Equal(t, genesis.Add(3*mock.Period), ch.NextRoundTime())
	require.Equal(t, uint64(2), ch.RoundAt(genesis.Add(mock.Period)))
}

func TestChainMetrics(t *testing.T) {
	ctx := context.Background()
	c := verifiableChain(t, 3)
	f := clientMock.FetcherWithChains(c)
	reg := prometheus.NewRegistry()

	ch, err := client.NewChain(c.Hash(), c.Info, client.WithFetcher(f), client.WithPrometheus(reg))
	require.NoError(t, err)

	_, err = ch.Round(ctx, 2)
	require.NoError(t, err)
	_, err = ch.Round(ctx, 3)
	require.NoError(t, err)
	_, err = ch.Round(ctx, 2)
	require.NoError(t, err)

	require.Equal(t, float64(3), testutil.ToFloat64(metrics.Verifications.WithLabelValues(c.Hash(), metrics.OutcomeVerified)))
	// verifying an older round does not lower the highest one
	require.Equal(t, float64(3), testutil.ToFloat64(metrics.HighestVerifiedRound.WithLabelValues(c.Hash())))
}

func TestOptionsValidation(t *testing.T) {
	_, err := client.AvailableChains(context.Background(), client.WithEndpoint(""))
	require.Error(t, err)

	_, err = client.AvailableChains(context.Background(), client.WithFetcher(nil))
	require.Error(t, err)

	_, err = client.AvailableChains(context.Background(), client.WithEndpoint("ftp://example.com"))
	require.Error(t, err)
}

// TestLeagueOfEntropyHistoricalRound only runs when DRAND_NETWORK_TESTS is set.
func TestLeagueOfEntropyHistoricalRound(t *testing.T) {
	if os.Getenv("DRAND_NETWORK_TESTS") == "" {
		t.Skip("set DRAND_NETWORK_TESTS to run tests against the League of Entropy")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg, err := client.WellKnownChain(ctx, client.WithEndpoint("https://api.drand.sh"), client.WithLogger(testlogger.New(t)))
	require.NoError(t, err)
	c := reg.Chains[0]
	require.Equal(t, "868f005eb8e6e4ca0a47c8a77ceaa5309a47978a7c71bc5cce96366b5d7a569937c529eeda66c7293784a9402801af31", c.Info.PublicKey)

	vr, err := c.Round(ctx, 123)
	require.NoError(t, err)
	require.NotNil(t, vr)
	require.Equal(t, uint64(123), vr.GetRound())
	require.Equal(t, "0e4f538534f426203a4089154ff31527b9c25b37f9d6704b3ecba8d74678b4e3", hex.EncodeToString(vr.GetRandomness()))
	pk := vr.PublicKey()
	require.Equal(t, c.Info.PublicKey, hex.EncodeToString(pk[:]))

	hc, err := drandhttp.New(testlogger.New(t), "https://api.drand.sh", nil)
	require.NoError(t, err)
	raw, err := hc.Public(ctx, client.LeagueOfEntropyHash, 123)
	require.NoError(t, err)
	require.Equal(t, raw.Signature, hex.EncodeToString(vr.GetSignature()))
	require.Equal(t, raw.PreviousSignature, hex.EncodeToString(vr.GetPreviousSignature()))
	require.Equal(t, raw.Randomness, hex.EncodeToString(vr.GetRandomness()))
}
