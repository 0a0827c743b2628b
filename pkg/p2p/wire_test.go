package p2p

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/venue"
)

func TestEventWireRoundtrip(t *testing.T) {
	e := venue.Event{
		Kind:       venue.EvPrivateOrderPlaced,
		Time:       1700000000,
		Trader:     common.HexToAddress("0x01"),
		Session:    3,
		OrderIndex: 2,
	}
	eb, err := gobEncode(e)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	data, err := gobEncode(EventWire{Event: eb})
	if err != nil {
		t.Fatalf("encode wire: %v", err)
	}

	var wire EventWire
	if err := gobDecode(data, &wire); err != nil {
		t.Fatalf("decode wire: %v", err)
	}
	var got venue.Event
	if err := gobDecode(wire.Event, &got); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if got != e {
		t.Fatalf("roundtrip mismatch: %+v != %+v", got, e)
	}
}
