package fhe

import (
	"bytes"
	"testing"
)

func newEngine(t *testing.T) *SealBox {
	t.Helper()
	e, err := NewSealBoxRandom()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		value uint64
		width Width
		want  uint64
	}{
		{0, Uint64, 0},
		{11000, Uint64, 11000},
		{300, Uint8, 300 & 0xff}, // truncated to width
		{1, Bool, 1},
		{7, Bool, 1}, // bool widths carry one bit
		{1 << 40, Uint32, 0},
	}

	for _, tt := range tests {
		ct, err := e.Encrypt(tt.value, tt.width)
		if err != nil {
			t.Fatalf("encrypt %d/%s: %v", tt.value, tt.width, err)
		}
		got, err := e.Decrypt(ct)
		if err != nil {
			t.Fatalf("decrypt %d/%s: %v", tt.value, tt.width, err)
		}
		if got != tt.want {
			t.Errorf("roundtrip %d/%s = %d, want %d", tt.value, tt.width, got, tt.want)
		}
	}
}

func TestDistinctCiphertextsForEqualPlaintext(t *testing.T) {
	e := newEngine(t)

	a, _ := e.Encrypt(42, Uint64)
	b, _ := e.Encrypt(42, Uint64)
	if bytes.Equal(a.Blob, b.Blob) {
		t.Error("two encryptions of the same value produced identical blobs")
	}
}

func TestAddSubWrap(t *testing.T) {
	e := newEngine(t)

	a, _ := e.Encrypt(250, Uint8)
	b, _ := e.Encrypt(10, Uint8)

	sum, err := e.Add(a, b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if v, _ := e.Decrypt(sum); v != 4 { // 260 mod 256
		t.Errorf("add wrap = %d, want 4", v)
	}

	diff, err := e.Sub(b, a)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if v, _ := e.Decrypt(diff); v != 16 { // -240 mod 256
		t.Errorf("sub wrap = %d, want 16", v)
	}
}

func TestCompareAndSelect(t *testing.T) {
	e := newEngine(t)

	lo, _ := e.Encrypt(10900, Uint64)
	hi, _ := e.Encrypt(11000, Uint64)

	eq, err := e.Eq(lo, hi)
	if err != nil {
		t.Fatalf("eq: %v", err)
	}
	if v, _ := e.Decrypt(eq); v != 0 {
		t.Errorf("eq(10900,11000) = %d, want 0", v)
	}

	lt, err := e.Lt(lo, hi)
	if err != nil {
		t.Fatalf("lt: %v", err)
	}
	if v, _ := e.Decrypt(lt); v != 1 {
		t.Errorf("lt(10900,11000) = %d, want 1", v)
	}

	sel, err := e.Select(lt, lo, hi)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if v, _ := e.Decrypt(sel); v != 10900 {
		t.Errorf("select = %d, want 10900", v)
	}
}

func TestWidthMismatch(t *testing.T) {
	e := newEngine(t)

	a, _ := e.Encrypt(1, Uint8)
	b, _ := e.Encrypt(1, Uint32)
	if _, err := e.Add(a, b); err == nil {
		t.Error("expected width mismatch error for euint8+euint32")
	}

	// Select with a non-bool condition
	if _, err := e.Select(a, b, b); err == nil {
		t.Error("expected error for non-ebool select condition")
	}
}

func TestForeignCiphertextRejected(t *testing.T) {
	e1 := newEngine(t)
	e2 := newEngine(t)

	ct, _ := e1.Encrypt(5, Uint64)
	if _, err := e2.Decrypt(ct); err == nil {
		t.Error("expected decrypt failure under a different sealing key")
	}

	if _, err := e1.Decrypt(Ciphertext{Width: Uint64, Blob: []byte("short")}); err == nil {
		t.Error("expected failure for truncated blob")
	}
}
