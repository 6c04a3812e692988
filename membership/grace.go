package membership

import (
	"sync"

	"github.com/novanet/novanet/xorname"
)

// GracePeriod tracks demoted elders still owed one full update cycle of
// AE service (spec §4.G: "demoted elders continue to serve AE for one
// full update cycle to let laggards catch up").
type GracePeriod struct {
	mu      sync.Mutex
	demoted map[xorname.Name]bool
}

// NewGracePeriod returns an empty tracker.
func NewGracePeriod() *GracePeriod {
	return &GracePeriod{demoted: make(map[xorname.Name]bool)}
}

// Demote marks name as a demoted elder owed one more update cycle.
func (g *GracePeriod) Demote(name xorname.Name) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.demoted[name] = true
}

// IsServing reports whether name is still within its grace period.
func (g *GracePeriod) IsServing(name xorname.Name) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.demoted[name]
}

// AdvanceCycle ends the grace period for every currently demoted elder;
// call once per completed section update cycle.
func (g *GracePeriod) AdvanceCycle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.demoted = make(map[xorname.Name]bool)
}
