package handle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	core "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
)

// Arithmetic is the permission-checked facade over the engine. Every input
// handle must carry a grant for the venue process (self) or the call fails
// with ErrPermissionDenied and mutates nothing. Every result handle starts
// with zero grants; forgetting to re-grant is the canonical bug upstream,
// and this facade makes it reproducible rather than hiding it.
type Arithmetic struct {
	store *Store
	perms *Permissions
	self  common.Address
}

func NewArithmetic(store *Store, perms *Permissions, self common.Address) *Arithmetic {
	return &Arithmetic{store: store, perms: perms, self: self}
}

// checkInputs verifies existence and self-grants for every operand before
// anything is computed. An unknown handle is reported as permission denied:
// no grant can exist for a handle that does not.
func (a *Arithmetic) checkInputs(op string, hs ...Handle) ([]fhe.Ciphertext, error) {
	cts := make([]fhe.Ciphertext, 0, len(hs))
	for _, h := range hs {
		ct, ok := a.store.ciphertext(h)
		if !ok || !a.perms.IsGranted(h, a.self) {
			return nil, fmt.Errorf("%s on handle %d: %w", op, h, core.ErrPermissionDenied)
		}
		cts = append(cts, ct)
	}
	return cts, nil
}

func (a *Arithmetic) binary(op string, x, y Handle, f func(a, b fhe.Ciphertext) (fhe.Ciphertext, error)) (Handle, error) {
	cts, err := a.checkInputs(op, x, y)
	if err != nil {
		return 0, err
	}
	out, err := f(cts[0], cts[1])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return a.store.put(out.Width, out), nil
}

func (a *Arithmetic) Add(x, y Handle) (Handle, error) {
	return a.binary("add", x, y, a.store.engine.Add)
}

func (a *Arithmetic) Sub(x, y Handle) (Handle, error) {
	return a.binary("sub", x, y, a.store.engine.Sub)
}

func (a *Arithmetic) Eq(x, y Handle) (Handle, error) {
	return a.binary("eq", x, y, a.store.engine.Eq)
}

func (a *Arithmetic) Lt(x, y Handle) (Handle, error) {
	return a.binary("lt", x, y, a.store.engine.Lt)
}

func (a *Arithmetic) Select(cond, x, y Handle) (Handle, error) {
	cts, err := a.checkInputs("select", cond, x, y)
	if err != nil {
		return 0, err
	}
	out, err := a.store.engine.Select(cts[0], cts[1], cts[2])
	if err != nil {
		return 0, fmt.Errorf("select: %w", err)
	}
	return a.store.put(out.Width, out), nil
}
