package mock

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/drand/drand/v2/common"
	chainCommon "github.com/drand/drand/v2/common/chain"
	"github.com/drand/drand/v2/crypto"
	"github.com/drand/kyber/share"
	"github.com/drand/kyber/sign/tbls"
	"github.com/drand/kyber/util/random"

	"github.com/drand/go-beacon/chain"
)

// Period is the round period of generated chains.
const Period = 30 * time.Second

// Chain is a generated randomness chain whose rounds all pass verification,
// except round 1 whose previous signature is the 32 byte genesis seed.
type Chain struct {
	Info *chain.Info
	// Rounds[i] holds round i+1.
	Rounds []chain.RawRandomness
}

// VerifiableChain creates count chained rounds signed by a fresh key.
func VerifiableChain(count int, sch *crypto.Scheme) *Chain {
	secret := sch.KeyGroup.Scalar().Pick(random.New())
	public := sch.KeyGroup.Point().Mul(secret, nil)
	seed := make([]byte, 32)
	if _, err := rand.Reader.Read(seed); err != nil {
		panic(err)
	}

	previous := seed
	rounds := make([]chain.RawRandomness, count)
	for i := range rounds {
		round := uint64(i + 1)
		msg := sch.DigestBeacon(&common.Beacon{Round: round, PreviousSig: previous})

		sshare := share.PriShare{I: 0, V: secret}
		tsig, err := sch.ThresholdScheme.Sign(&sshare, msg)
		if err != nil {
			panic(err)
		}
		tshare := tbls.SigShare(tsig)
		sig := tshare.Value()

		rounds[i] = chain.RawRandomness{
			Round:             round,
			Randomness:        hex.EncodeToString(crypto.RandomnessFromSignature(sig)),
			Signature:         hex.EncodeToString(sig),
			PreviousSignature: hex.EncodeToString(previous),
		}
		previous = sig
	}

	genesis := time.Now().Unix() - int64(count)*int64(Period/time.Second)
	dinfo := &chainCommon.Info{
		PublicKey:   public,
		Period:      Period,
		GenesisTime: genesis,
		GenesisSeed: seed,
		Scheme:      sch.Name,
	}
	pk, err := public.MarshalBinary()
	if err != nil {
		panic(err)
	}

	return &Chain{
		Info: &chain.Info{
			PublicKey:   hex.EncodeToString(pk),
			Period:      uint64(Period / time.Second),
			GenesisTime: genesis,
			Hash:        dinfo.HashString(),
			SchemeID:    sch.Name,
		},
		Rounds: rounds,
	}
}

// Round returns the given round, or the latest one for 0.
func (c *Chain) Round(round uint64) (chain.RawRandomness, bool) {
	if round == 0 {
		return c.Latest(), true
	}
	if round > uint64(len(c.Rounds)) {
		return chain.RawRandomness{}, false
	}
	return c.Rounds[round-1], true
}

// Latest returns the last generated round.
func (c *Chain) Latest() chain.RawRandomness {
	return c.Rounds[len(c.Rounds)-1]
}

// Hash is the chain hash of the generated chain.
func (c *Chain) Hash() string {
	return c.Info.Hash
}
