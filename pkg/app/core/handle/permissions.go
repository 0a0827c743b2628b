package handle

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type GrantKind uint8

const (
	// Persistent grants survive across operations and are irrevocable:
	// revocation cannot be retroactively enforced against a principal who
	// was already permitted to see or use the value.
	Persistent GrantKind = iota
	// Transient grants are valid only within the operation that issued
	// them and are swept at EndOp.
	Transient
)

type grantKey struct {
	h Handle
	p common.Address
}

// PermissionEntry tracks one (handle, principal) grant. Approved is
// application-level bookkeeping layered on top of the grant itself; clearing
// it does not retract the grant.
type PermissionEntry struct {
	Kind     GrantKind
	Approved bool
}

// Permissions is the grant table keyed by (handle, principal). It is
// deliberately separate from the handle arena: value lifetime and permission
// lifetime are decoupled.
type Permissions struct {
	mu        sync.RWMutex
	grants    map[grantKey]*PermissionEntry
	transient []grantKey // keys issued as transient in the current operation
}

func NewPermissions() *Permissions {
	return &Permissions{grants: make(map[grantKey]*PermissionEntry)}
}

// Grant records a grant. Idempotent: re-granting is a no-op, and a transient
// request on an existing persistent grant never downgrades it.
func (p *Permissions) Grant(h Handle, principal common.Address, kind GrantKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := grantKey{h, principal}
	if e, ok := p.grants[k]; ok {
		e.Approved = true
		if e.Kind == Transient && kind == Persistent {
			e.Kind = Persistent
		}
		return
	}
	p.grants[k] = &PermissionEntry{Kind: kind, Approved: true}
	if kind == Transient {
		p.transient = append(p.transient, k)
	}
}

// IsGranted reports whether principal may use or reveal the handle.
func (p *Permissions) IsGranted(h Handle, principal common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.grants[grantKey{h, principal}]
	return ok
}

// IsApproved reports the application-level approval flag.
func (p *Permissions) IsApproved(h Handle, principal common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.grants[grantKey{h, principal}]
	return ok && e.Approved
}

// RevokeLogical clears only the approval flag. It does NOT retract the grant:
// a persistent grant remains usable afterward. This asymmetry is load-bearing
// and covered by tests.
func (p *Permissions) RevokeLogical(h Handle, principal common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.grants[grantKey{h, principal}]; ok {
		e.Approved = false
	}
}

// BeginOp marks the start of a serialized operation. Any transient grants
// left over from a previous operation are gone by construction (EndOp), so
// this is currently a seam for symmetry and future audit hooks.
func (p *Permissions) BeginOp() {}

// EndOp sweeps grants issued as transient during the operation. Entries that
// were upgraded to persistent in the meantime survive.
func (p *Permissions) EndOp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.transient {
		if e, ok := p.grants[k]; ok && e.Kind == Transient {
			delete(p.grants, k)
		}
	}
	p.transient = nil
}
