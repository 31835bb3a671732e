// Package middleware provides decorators for ports.PlanStore.
package middleware

import "github.com/aretw0/waypoint/pkg/ports"

// Middleware allows wrapping a PlanStore to add behavior.
type Middleware func(ports.PlanStore) ports.PlanStore

// Chain applies mws to store so that the first middleware is the outermost.
func Chain(store ports.PlanStore, mws ...Middleware) ports.PlanStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
