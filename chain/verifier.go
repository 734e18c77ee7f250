package chain

import (
	"fmt"

	"github.com/drand/drand/v2/common"
	"github.com/drand/drand/v2/crypto"
	"github.com/drand/kyber"
)

// Verifier is the cryptographic capability the randomness decoder relies on.
type Verifier interface {
	// PublicKey validates b as a compressed group element.
	PublicKey(b []byte) (kyber.Point, error)
	// Verify reports whether sig is the chain signature of round chained on prev.
	// An error means the check could not be evaluated at all.
	Verify(pub kyber.Point, round uint64, prev, sig []byte) (bool, error)
}

type schemeVerifier struct {
	sch *crypto.Scheme
}

// NewSchemeVerifier returns a Verifier backed by a drand signature scheme.
func NewSchemeVerifier(sch *crypto.Scheme) Verifier {
	return &schemeVerifier{sch: sch}
}

// DefaultVerifier verifies rounds of chained beacons: public keys on G1,
// signatures on G2 over sha256(previous_signature || round).
func DefaultVerifier() (Verifier, error) {
	sch, err := crypto.GetSchemeByID(crypto.DefaultSchemeID)
	if err != nil {
		return nil, fmt.Errorf("loading scheme %s: %w", crypto.DefaultSchemeID, err)
	}
	return NewSchemeVerifier(sch), nil
}

func (v *schemeVerifier) PublicKey(b []byte) (kyber.Point, error) {
	p := v.sch.KeyGroup.Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return p, nil
}

func (v *schemeVerifier) Verify(pub kyber.Point, round uint64, prev, sig []byte) (bool, error) {
	// a signature that is not a point is a failure of the check itself,
	// not a negative answer
	if err := v.sch.SigGroup.Point().UnmarshalBinary(sig); err != nil {
		return false, fmt.Errorf("signature: %w", err)
	}

	b := &common.Beacon{
		PreviousSig: prev,
		Round:       round,
		Signature:   sig,
	}
	if err := v.sch.VerifyBeacon(b, pub); err != nil {
		return false, nil
	}
	return true, nil
}
