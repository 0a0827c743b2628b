package p2p

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(EventWire{})
	gob.Register(SettlementWire{})
}

// EventWire carries one gob-encoded venue.Event.
type EventWire struct {
	Event []byte
}

// SettlementWire announces an attested settlement report: the digest replicas
// can aggregate their own attestations over.
type SettlementWire struct {
	SessionID   uint32
	Digest      []byte
	Attestation []byte // BLS signature over Digest
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
