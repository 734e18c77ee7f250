package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/drand/drand/v2/common"
	"github.com/hashicorp/go-multierror"
	json "github.com/nikkolasg/hexjson"

	"github.com/drand/go-beacon/drand"
)

// PublicKeySize is the length of a decoded chain public key.
const PublicKeySize = 48

// Info is the trusted metadata of a randomness chain. Every round of the
// chain must verify against PublicKey.
type Info struct {
	PublicKey   string `json:"public_key" toml:"public_key"`
	Period      uint64 `json:"period" toml:"period"`
	GenesisTime int64  `json:"genesis_time" toml:"genesis_time"`
	Hash        string `json:"hash" toml:"hash"`
	// GroupHash and SchemeID are passed through when the server provides them.
	GroupHash string `json:"groupHash,omitempty" toml:"group_hash,omitempty"`
	SchemeID  string `json:"schemeID,omitempty" toml:"scheme_id,omitempty"`
}

// InfoFromJSON decodes chain info as served by the /info endpoint.
func InfoFromJSON(r io.Reader) (*Info, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	info := new(Info)
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, &drand.InvalidResponseError{Raw: string(raw), Err: err}
	}
	if info.PublicKey == "" || info.Hash == "" {
		return nil, &drand.InvalidResponseError{Raw: string(raw), Err: errors.New("missing public_key or hash")}
	}
	return info, nil
}

// Validate reports every structural problem with the info at once.
func (i *Info) Validate() error {
	var result *multierror.Error
	var pk [PublicKeySize]byte
	if err := decodeHex("public_key", i.PublicKey, pk[:]); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := hex.DecodeString(i.Hash); err != nil || i.Hash == "" {
		result = multierror.Append(result, &drand.MalformedHexError{Field: "hash", Err: fmt.Errorf("invalid chain hash %q", i.Hash)})
	}
	if i.Period == 0 {
		result = multierror.Append(result, errors.New("period must be positive"))
	}
	return result.ErrorOrNil()
}

// CheckHash fails with drand.ErrInvalidChainHash unless the info describes the
// chain identified by hash.
func (i *Info) CheckHash(hash string) error {
	if !strings.EqualFold(i.Hash, hash) {
		return fmt.Errorf("%w: expected %s, info has %s", drand.ErrInvalidChainHash, hash, i.Hash)
	}
	return nil
}

// PeriodDuration is the time between two rounds.
func (i *Info) PeriodDuration() time.Duration {
	return time.Duration(i.Period) * time.Second
}

// RoundAt returns the round that is current at t. Before genesis it is 0.
func (i *Info) RoundAt(t time.Time) uint64 {
	if t.Unix() < i.GenesisTime {
		return 0
	}
	return common.CurrentRound(t.Unix(), i.PeriodDuration(), i.GenesisTime)
}

// TimeOfRound returns when round is emitted.
func (i *Info) TimeOfRound(round uint64) time.Time {
	return time.Unix(common.TimeOfRound(i.PeriodDuration(), i.GenesisTime, round), 0)
}
