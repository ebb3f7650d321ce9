package authn

import "sync"

// Capability names a permission an identity may hold. The engine never
// enumerates members of a capability, it only asks whether one caller
// holds one capability.
type Capability string

const (
	// CapabilitySigner authorizes signing participant requests.
	CapabilitySigner Capability = "signer"
	// CapabilityManager authorizes group, currency, and pause administration.
	CapabilityManager Capability = "manager"
	// CapabilityOperator authorizes winner selection and batch refunds.
	CapabilityOperator Capability = "operator"
	// CapabilityWithdrawer authorizes withdrawals and withdrawal-address changes.
	CapabilityWithdrawer Capability = "withdrawer"
)

// Checker answers capability membership questions. Backed by any
// authorization store; revoking a grant immediately invalidates future
// use of the identity but not past-committed state.
type Checker interface {
	HasCapability(identity string, capability Capability) bool
}

// MemoryChecker is an in-memory implementation of Checker.
type MemoryChecker struct {
	mu     sync.RWMutex
	grants map[Capability]map[string]bool
}

// NewMemoryChecker creates an empty in-memory capability checker.
func NewMemoryChecker() *MemoryChecker {
	return &MemoryChecker{grants: make(map[Capability]map[string]bool)}
}

// Grant gives identity the capability.
func (c *MemoryChecker) Grant(identity string, capability Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.grants[capability] == nil {
		c.grants[capability] = make(map[string]bool)
	}
	c.grants[capability][identity] = true
}

// Revoke removes the capability from identity.
func (c *MemoryChecker) Revoke(identity string, capability Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.grants[capability], identity)
}

// HasCapability reports whether identity currently holds the capability.
func (c *MemoryChecker) HasCapability(identity string, capability Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.grants[capability][identity]
}

// Verify interface compliance at compile time.
var _ Checker = (*MemoryChecker)(nil)
