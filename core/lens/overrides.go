package lens

import "sync"

// Overrides is the session-scoped store of pending lens selections,
// keyed by cart line id. One instance lives per browsing session; the
// server keeps its copy in the request session, the client in memory.
type Overrides struct {
	mu     sync.RWMutex
	byCart map[int64]Override
}

func NewOverrides() *Overrides {
	return &Overrides{byCart: make(map[int64]Override)}
}

func (o *Overrides) Set(cartID int64, ov Override) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byCart[cartID] = ov
}

func (o *Overrides) Get(cartID int64) (Override, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ov, ok := o.byCart[cartID]
	return ov, ok
}

func (o *Overrides) Clear(cartID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.byCart, cartID)
}

// Snapshot copies the whole map, for session serialization.
func (o *Overrides) Snapshot() map[int64]Override {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[int64]Override, len(o.byCart))
	for k, v := range o.byCart {
		out[k] = v
	}
	return out
}
