package chain

import (
	"bytes"

	"github.com/drand/drand/v2/crypto"
	json "github.com/nikkolasg/hexjson"

	"github.com/drand/go-beacon/drand"
)

// Sizes of the decoded fields of a round.
const (
	SignatureSize  = 96
	RandomnessSize = 32
)

// RawRandomness is a round as received from the network. Nothing in it is
// trusted until Verify succeeds.
type RawRandomness struct {
	Round             uint64 `json:"round"`
	Randomness        string `json:"randomness"`
	Signature         string `json:"signature"`
	PreviousSignature string `json:"previous_signature"`
}

// VerifiedRandomness is a round whose signature was checked against the
// chain public key. It can only be obtained from RawRandomness.Verify.
type VerifiedRandomness struct {
	round             uint64
	publicKey         [PublicKeySize]byte
	signature         [SignatureSize]byte
	randomness        [RandomnessSize]byte
	previousSignature [SignatureSize]byte
}

// Verify decodes the round and checks its signature against info.PublicKey.
//
// A round that is well formed but does not verify is not an error: Verify
// returns a nil VerifiedRandomness and a nil error, and the data must not be
// trusted. Errors match drand.ErrMalformedHex, drand.ErrInvalidPoint or
// drand.ErrVerification.
//
//nolint:nilnil // a nil result without error is the rejected outcome
func (r *RawRandomness) Verify(info *Info, v Verifier) (*VerifiedRandomness, error) {
	var (
		publicKey         [PublicKeySize]byte
		signature         [SignatureSize]byte
		randomness        [RandomnessSize]byte
		previousSignature [SignatureSize]byte
	)

	if err := decodeHex("public_key", info.PublicKey, publicKey[:]); err != nil {
		return nil, err
	}
	if err := decodeHex("signature", r.Signature, signature[:]); err != nil {
		return nil, err
	}
	if err := decodeHex("randomness", r.Randomness, randomness[:]); err != nil {
		return nil, err
	}
	if err := decodeHex("previous_signature", r.PreviousSignature, previousSignature[:]); err != nil {
		return nil, err
	}

	pk, err := v.PublicKey(publicKey[:])
	if err != nil {
		return nil, &drand.InvalidPointError{Err: err}
	}

	ok, err := v.Verify(pk, r.Round, previousSignature[:], signature[:])
	if err != nil {
		return nil, &drand.VerificationError{Err: err}
	}
	if !ok {
		return nil, nil
	}

	// randomness is derived from the signature and carries no signature of its own
	if !bytes.Equal(randomness[:], crypto.RandomnessFromSignature(signature[:])) {
		return nil, nil
	}

	return &VerifiedRandomness{
		round:             r.Round,
		publicKey:         publicKey,
		signature:         signature,
		randomness:        randomness,
		previousSignature: previousSignature,
	}, nil
}

// GetRound provides access to the round associated with this random data.
func (v *VerifiedRandomness) GetRound() uint64 {
	return v.round
}

// GetSignature provides the signature over this round's randomness
func (v *VerifiedRandomness) GetSignature() []byte {
	return bytes.Clone(v.signature[:])
}

// GetPreviousSignature provides the signature of the previous round.
func (v *VerifiedRandomness) GetPreviousSignature() []byte {
	return bytes.Clone(v.previousSignature[:])
}

// GetRandomness exports the randomness using the legacy SHA256 derivation path
func (v *VerifiedRandomness) GetRandomness() []byte {
	return bytes.Clone(v.randomness[:])
}

// PublicKey is the chain public key the round verified against.
func (v *VerifiedRandomness) PublicKey() [PublicKeySize]byte {
	return v.publicKey
}

// Randomness returns the 32 random bytes of the round.
func (v *VerifiedRandomness) Randomness() [RandomnessSize]byte {
	return v.randomness
}

type verifiedJSON struct {
	Round             uint64 `json:"round"`
	Randomness        []byte `json:"randomness"`
	Signature         []byte `json:"signature"`
	PreviousSignature []byte `json:"previous_signature"`
	PublicKey         []byte `json:"public_key"`
}

// MarshalJSON encodes the round with hex byte fields, in the same shape the
// beacon network serves it.
func (v *VerifiedRandomness) MarshalJSON() ([]byte, error) {
	return json.Marshal(verifiedJSON{
		Round:             v.round,
		Randomness:        v.randomness[:],
		Signature:         v.signature[:],
		PreviousSignature: v.previousSignature[:],
		PublicKey:         v.publicKey[:],
	})
}
