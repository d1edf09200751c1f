package checkout

import (
	"fmt"
	"sync"
	"time"

	"batard/internal/models"
)

// Planner holds one customer's checkout state: the cart, the known category
// list, the shared pickup date and the per-group slot selections. A server
// handles many planners concurrently, one per checkout session.
type Planner struct {
	mu         sync.Mutex
	lines      []models.CartLine
	categories []models.Category
	date       string
	groups     []PickupGroup
	updatedAt  time.Time
}

// NewPlanner creates a planner with the given shared pickup date.
func NewPlanner(date string) *Planner {
	return &Planner{date: date, updatedAt: time.Now()}
}

// SetCart replaces the cart lines and recomputes all groups.
func (p *Planner) SetCart(lines []models.CartLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append([]models.CartLine(nil), lines...)
	p.rebuild()
}

// SetCategories replaces the category list and recomputes all groups.
func (p *Planner) SetCategories(categories []models.Category) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.categories = append([]models.Category(nil), categories...)
	p.rebuild()
}

// SetDate changes the shared pickup date for every group and clears each
// group's selected time slot: lead time and weekday/weekend windows are
// date-dependent, so a previously valid slot may no longer exist.
func (p *Planner) SetDate(date string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.date = date
	for i := range p.groups {
		p.groups[i].Date = date
		p.groups[i].TimeSlot = ""
	}
	p.updatedAt = time.Now()
}

// SelectSlot records the chosen time slot for the group with the given key.
func (p *Planner) SelectSlot(key, slot string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.groups {
		if p.groups[i].Key == key {
			p.groups[i].TimeSlot = slot
			p.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("no pickup group with key %q", key)
}

// SetNotes records order notes for the group with the given key.
func (p *Planner) SetNotes(key, notes string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.groups {
		if p.groups[i].Key == key {
			p.groups[i].OrderNotes = notes
			p.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("no pickup group with key %q", key)
}

// Date returns the shared pickup date.
func (p *Planner) Date() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.date
}

// Groups returns a copy of the current pickup groups.
func (p *Planner) Groups() []PickupGroup {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PickupGroup, len(p.groups))
	copy(out, p.groups)
	return out
}

// IsExpired checks if the planner has been idle longer than timeout.
func (p *Planner) IsExpired(timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.updatedAt) > timeout
}

// rebuild recomputes groups from scratch. Selections do not survive a cart
// or category change; only the shared date carries over. Callers hold p.mu.
func (p *Planner) rebuild() {
	p.groups = ComputePickupGroups(p.lines, p.categories, p.date)
	p.updatedAt = time.Now()
}

// PlannerStore manages checkout planners keyed by session ID.
type PlannerStore struct {
	planners map[string]*Planner
	mu       sync.RWMutex
	timeout  time.Duration
	today    func() string
}

// NewPlannerStore creates a store with the given idle timeout.
func NewPlannerStore(timeout time.Duration) *PlannerStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &PlannerStore{
		planners: make(map[string]*Planner),
		timeout:  timeout,
		today:    func() string { return time.Now().Format("2006-01-02") },
	}
}

// Get returns the planner for a session, or nil.
func (s *PlannerStore) Get(sessionID string) *Planner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.planners[sessionID]
}

// GetOrCreate returns the existing planner or creates a fresh one dated today.
func (s *PlannerStore) GetOrCreate(sessionID string) *Planner {
	s.mu.Lock()
	defer s.mu.Unlock()

	planner, ok := s.planners[sessionID]
	if ok && !planner.IsExpired(s.timeout) {
		return planner
	}

	planner = NewPlanner(s.today())
	s.planners[sessionID] = planner
	return planner
}

// Delete removes a session's planner.
func (s *PlannerStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.planners, sessionID)
}

// Cleanup removes expired planners and returns how many were dropped.
func (s *PlannerStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, planner := range s.planners {
		if planner.IsExpired(s.timeout) {
			delete(s.planners, id)
			removed++
		}
	}
	return removed
}
