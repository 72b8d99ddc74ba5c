package model

import (
	"encoding/json"
	"sync"
)

// Properties is a string keyed annotation bag attached to a candidate.
// The pipeline writes latency and outcome markers into it while other
// goroutines may be reading it for diagnostics.
type Properties struct {
	mu   sync.RWMutex
	vals map[string]string
}

// NewProperties returns an empty bag.
func NewProperties() *Properties {
	return &Properties{vals: make(map[string]string)}
}

// Set stores v under k.
func (p *Properties) Set(k, v string) {
	p.mu.Lock()
	if p.vals == nil {
		p.vals = make(map[string]string)
	}
	p.vals[k] = v
	p.mu.Unlock()
}

// Get returns the value stored under k.
func (p *Properties) Get(k string) (string, bool) {
	if p == nil {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.vals[k]
	return v, ok
}

// Snapshot returns a copy of the current contents.
func (p *Properties) Snapshot() map[string]string {
	out := make(map[string]string)
	if p == nil {
		return out
	}
	p.mu.RLock()
	for k, v := range p.vals {
		out[k] = v
	}
	p.mu.RUnlock()
	return out
}

// Len returns the number of stored keys.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.vals)
}

// Clone copies the bag. A nil bag clones to a fresh empty one.
func (p *Properties) Clone() *Properties {
	return &Properties{vals: p.Snapshot()}
}

func (p *Properties) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Snapshot())
}

func (p *Properties) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	p.mu.Lock()
	p.vals = m
	p.mu.Unlock()
	return nil
}
