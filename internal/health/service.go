package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CheckFunc checks one component. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Broadcaster pushes status changes to live subscribers.
type Broadcaster interface {
	Broadcast(msgType string, payload any)
}

type component struct {
	item  Item
	check CheckFunc
}

// Service runs registered component checks and keeps their last result.
// State is in-memory and resets on restart.
type Service struct {
	mu          sync.RWMutex
	components  map[string]*component
	broadcaster Broadcaster
	timeout     time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewService creates a health service. Each check gets at most timeout.
func NewService(timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		components: make(map[string]*component),
		timeout:    timeout,
		now:        time.Now,
		logger:     logger.With().Str("component", "health").Logger(),
	}
}

// SetBroadcaster sets the sink for status change events.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Register adds a component in unknown state. Registering an existing id
// replaces its check and resets it.
func (s *Service) Register(id, name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[id] = &component{
		item:  Item{ID: id, Name: name, Status: StatusUnknown},
		check: check,
	}
}

// CheckAll runs every registered check sequentially and returns the summary.
func (s *Service) CheckAll(ctx context.Context) Summary {
	s.mu.RLock()
	ids := make([]string, 0, len(s.components))
	for id := range s.components {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		_ = s.Check(ctx, id)
	}
	return s.Summary()
}

// Check runs a single component's check, records and returns its result.
func (s *Service) Check(ctx context.Context, id string) error {
	s.mu.RLock()
	c, ok := s.components[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := c.check(checkCtx)
	cancel()

	s.Report(id, err)
	return err
}

// Report records an externally observed result for a component.
func (s *Service) Report(id string, err error) {
	status, message := StatusOK, ""
	if err != nil {
		status, message = StatusError, err.Error()
	}

	now := s.now()

	s.mu.Lock()
	c, ok := s.components[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn().Str("id", id).Msg("result reported for unregistered component")
		return
	}

	old := c.item.Status
	c.item.CheckedAt = &now
	changed := old != status || c.item.Message != message
	c.item.Message = message
	if old != status {
		c.item.Status = status
		if status == StatusOK {
			c.item.Since = nil
		} else {
			c.item.Since = &now
		}
	}
	payload := UpdatePayload{ID: id, Name: c.item.Name, Status: status, Message: message}
	s.mu.Unlock()

	if !changed {
		return
	}

	if status == StatusOK {
		s.logger.Info().Str("id", id).Str("oldStatus", string(old)).Msg("component healthy")
	} else {
		s.logger.Warn().Str("id", id).Str("oldStatus", string(old)).Str("message", message).Msg("component unhealthy")
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast("health:updated", payload)
	}
}

// Get returns a copy of one component's state.
func (s *Service) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[id]
	if !ok {
		return Item{}, false
	}
	return c.item, true
}

// IsHealthy reports whether the component's last check succeeded.
func (s *Service) IsHealthy(id string) bool {
	item, ok := s.Get(id)
	return ok && item.Status == StatusOK
}

// Summary returns all components ordered by id. Healthy is false when any
// component is in error; unknown components do not count against it.
func (s *Service) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Healthy: true, Items: make([]Item, 0, len(s.components))}
	for _, c := range s.components {
		sum.Items = append(sum.Items, c.item)
		if c.item.Status == StatusError {
			sum.Healthy = false
		}
	}
	sort.Slice(sum.Items, func(i, j int) bool { return sum.Items[i].ID < sum.Items[j].ID })
	return sum
}
