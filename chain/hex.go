package chain

import (
	"encoding/hex"
	"fmt"

	"github.com/drand/go-beacon/drand"
)

// decodeHex fills dst from s, which must hold exactly 2*len(dst) hex digits.
func decodeHex(field, s string, dst []byte) error {
	if len(s) != hex.EncodedLen(len(dst)) {
		return &drand.MalformedHexError{
			Field: field,
			Err:   fmt.Errorf("expected %d hex characters, got %d", hex.EncodedLen(len(dst)), len(s)),
		}
	}
	if _, err := hex.Decode(dst, []byte(s)); err != nil {
		return &drand.MalformedHexError{Field: field, Err: err}
	}
	return nil
}
