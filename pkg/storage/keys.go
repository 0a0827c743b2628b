package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Audit key schema. Trader metadata keeps its own "trd:" prefix in the
// trader package; prefixes here must not collide with it.
//
//   ses:<8-byte-be id>                     → SessionRecord
//   ord:<8-byte-be id>:<address>:<index>   → OrderRecord
//   rep:<8-byte-be id>                     → settlement report digest
const (
	prefixSession = "ses:"
	prefixOrder   = "ord:"
	prefixReport  = "rep:"
)

func sessionIDKey(id uint32) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(id))
	return k[:]
}

func sessionKey(id uint32) []byte {
	return append([]byte(prefixSession), sessionIDKey(id)...)
}

// orderKey zero-pads the index so placement order survives the
// lexicographic scan.
func orderKey(id uint32, trader common.Address, index int) []byte {
	k := append([]byte(prefixOrder), sessionIDKey(id)...)
	return append(k, []byte(fmt.Sprintf(":%s:%06d", trader.Hex(), index))...)
}

func orderPrefix(id uint32) []byte {
	k := append([]byte(prefixOrder), sessionIDKey(id)...)
	return append(k, ':')
}

func reportKey(id uint32) []byte {
	return append([]byte(prefixReport), sessionIDKey(id)...)
}

// keyUpperBound is the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
