package services

import (
	"sync"
	"time"
)

// ReconcilerRegistry hands out one PricingReconciler per client session. A
// confirmed quote belongs to the session whose selections produced it; sharing
// a reconciler across sessions would let one user's quote satisfy another
// user's checkout gate.
type ReconcilerRegistry struct {
	mu       sync.Mutex
	gateway  PricingGateway
	interval time.Duration
	rates    PricingRates
	entries  map[string]*registryEntry
}

type registryEntry struct {
	reconciler *PricingReconciler
	lastUsed   time.Time
}

// NewReconcilerRegistry creates the registry
func NewReconcilerRegistry(gw PricingGateway, interval time.Duration, rates PricingRates) *ReconcilerRegistry {
	r := &ReconcilerRegistry{
		gateway:  gw,
		interval: interval,
		rates:    rates,
		entries:  make(map[string]*registryEntry),
	}

	// Start cleanup goroutine
	go r.cleanup()

	return r
}

// For returns the session's reconciler, creating it on first use
func (r *ReconcilerRegistry) For(clientID string) *PricingReconciler {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[clientID]
	if !ok {
		entry = &registryEntry{
			reconciler: NewPricingReconciler(r.gateway, r.interval, r.rates),
		}
		r.entries[clientID] = entry
	}
	entry.lastUsed = time.Now()
	return entry.reconciler
}

// cleanup evicts reconcilers for sessions idle longer than 30 minutes
func (r *ReconcilerRegistry) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-30 * time.Minute)

		r.mu.Lock()
		for id, entry := range r.entries {
			if entry.lastUsed.Before(cutoff) {
				entry.reconciler.Stop()
				delete(r.entries, id)
			}
		}
		r.mu.Unlock()
	}
}

// Stop cancels every session's pending dry run
func (r *ReconcilerRegistry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.entries {
		entry.reconciler.Stop()
		delete(r.entries, id)
	}
}
