package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
)

// Persistence loads and saves the alert set.
type Persistence interface {
	LoadAlerts() ([]model.AlertRule, error)
	SaveAlerts(rules []model.AlertRule) error
}

// Watchlist is the part of the watchlist store alerts depend on at creation.
type Watchlist interface {
	Contains(code string) bool
	Snapshot() model.QuoteSnapshot
}

// Store holds the configured alerts in creation order.
type Store struct {
	writeMu sync.Mutex // orders mutations together with their saves
	mu      sync.Mutex
	rules   []*model.AlertRule
	persist Persistence
	watch   Watchlist
	now     func() time.Time
	log     *logrus.Entry
}

// NewStore creates an alert store. persist may be nil.
func NewStore(persist Persistence, watch Watchlist) *Store {
	return &Store{
		persist: persist,
		watch:   watch,
		now:     time.Now,
		log:     logger.Get().WithComponent("alerts"),
	}
}

// Load replaces the alert set from persistence. Rules that no longer validate
// are kept but logged, since deleting them is the user's call.
func (s *Store) Load() error {
	if s.persist == nil {
		return nil
	}
	rules, err := s.persist.LoadAlerts()
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	loaded := make([]*model.AlertRule, 0, len(rules))
	for i := range rules {
		r := rules[i]
		if err := Validate(draftOf(&r)); err != nil {
			s.log.WithError(err).WithField("alert_id", r.ID).Warn("stored alert does not validate")
		}
		if r.TimePeriod == "" {
			r.TimePeriod = model.PeriodOnce
		}
		loaded = append(loaded, &r)
	}
	s.mu.Lock()
	s.rules = loaded
	s.mu.Unlock()
	s.log.WithField("alerts", len(loaded)).Info("alerts loaded")
	return nil
}

// Create validates d and adds a new armed alert. The code must be watched.
// BasePrice defaults to the quote's previous close, then its price.
func (s *Store) Create(d Draft) (model.AlertRule, error) {
	if err := Validate(d); err != nil {
		return model.AlertRule{}, err
	}
	if s.watch != nil && !s.watch.Contains(d.Code) {
		return model.AlertRule{}, fmt.Errorf("%w: %s", ErrNotWatched, d.Code)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var quote model.Quote
	var hasQuote bool
	if s.watch != nil {
		quote, hasQuote = s.watch.Snapshot().Get(d.Code)
	}
	base := d.BasePrice
	if base == 0 && hasQuote {
		base = quote.PrevClose
		if base == 0 {
			base = quote.Price
		}
	}
	if d.Type == model.AlertPercent && base <= 0 {
		return model.AlertRule{}, invalid("base_price", "is required until a quote is available")
	}
	name := d.Name
	if name == "" && hasQuote {
		name = quote.Name
	}
	if name == "" {
		name = d.Code
	}
	period := d.TimePeriod
	if period == "" {
		period = model.PeriodOnce
	}

	r := &model.AlertRule{
		ID:            uuid.NewString(),
		Code:          d.Code,
		Name:          name,
		Type:          d.Type,
		Condition:     d.Condition,
		TargetValue:   d.TargetValue,
		BasePrice:     base,
		TimePeriod:    period,
		Notifications: d.Notifications,
		CreatedAt:     s.now(),
	}

	s.mu.Lock()
	s.rules = append(s.rules, r)
	out := *r
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.save(snapshot)
	s.log.WithFields(logrus.Fields{"alert_id": r.ID, "code": r.Code}).Info("alert created")
	return out, nil
}

// Update applies an edit. Changing target, condition or type re-arms the alert.
// The code is fixed at creation; BasePrice changes only when d sets it.
func (s *Store) Update(id string, d Draft) (model.AlertRule, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := Validate(d); err != nil {
		return model.AlertRule{}, err
	}

	s.mu.Lock()
	r := s.findLocked(id)
	if r == nil {
		s.mu.Unlock()
		return model.AlertRule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if d.Code != r.Code {
		s.mu.Unlock()
		return model.AlertRule{}, invalid("code", "cannot change after creation")
	}
	reset := termsChanged(r, d)
	if d.BasePrice > 0 && d.BasePrice != r.BasePrice {
		r.BasePrice = d.BasePrice
		reset = reset || r.Type == model.AlertPercent || d.Type == model.AlertPercent
	}
	if d.Type == model.AlertPercent && r.BasePrice <= 0 {
		s.mu.Unlock()
		return model.AlertRule{}, invalid("base_price", "is required for percent alerts")
	}
	if d.Name != "" {
		r.Name = d.Name
	}
	r.Type = d.Type
	r.Condition = d.Condition
	r.TargetValue = d.TargetValue
	if d.TimePeriod != "" {
		r.TimePeriod = d.TimePeriod
	}
	r.Notifications = d.Notifications
	if reset {
		rearm(r)
	}
	out := *r
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.save(snapshot)
	s.log.WithFields(logrus.Fields{"alert_id": id, "rearmed": reset}).Info("alert updated")
	return out, nil
}

// Reset re-arms a fired alert without changing its terms.
func (s *Store) Reset(id string) (model.AlertRule, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	r := s.findLocked(id)
	if r == nil {
		s.mu.Unlock()
		return model.AlertRule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rearm(r)
	out := *r
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.save(snapshot)
	return out, nil
}

// Delete removes an alert.
func (s *Store) Delete(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	idx := -1
	for i, r := range s.rules {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.rules = append(s.rules[:idx:idx], s.rules[idx+1:]...)
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.save(snapshot)
	s.log.WithField("alert_id", id).Info("alert deleted")
	return nil
}

// Get returns a copy of one alert.
func (s *Store) Get(id string) (model.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findLocked(id)
	if r == nil {
		return model.AlertRule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyRule(r), nil
}

// List returns copies of all alerts in creation order.
func (s *Store) List() []model.AlertRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Codes returns the distinct codes alerts refer to.
func (s *Store) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.rules))
	var codes []string
	for _, r := range s.rules {
		if !seen[r.Code] {
			seen[r.Code] = true
			codes = append(codes, r.Code)
		}
	}
	return codes
}

// mutate runs fn over the live rules under the store lock and saves when fn
// reports a change.
func (s *Store) mutate(fn func(rules []*model.AlertRule) bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	changed := fn(s.rules)
	var snapshot []model.AlertRule
	if changed {
		snapshot = s.copyLocked()
	}
	s.mu.Unlock()
	if changed {
		s.save(snapshot)
	}
}

func (s *Store) save(rules []model.AlertRule) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveAlerts(rules); err != nil {
		s.log.WithError(err).Error("save alerts failed")
	}
}

func (s *Store) findLocked(id string) *model.AlertRule {
	for _, r := range s.rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *Store) copyLocked() []model.AlertRule {
	out := make([]model.AlertRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = copyRule(r)
	}
	return out
}

func copyRule(r *model.AlertRule) model.AlertRule {
	out := *r
	if r.LastTriggerPrice != nil {
		p := *r.LastTriggerPrice
		out.LastTriggerPrice = &p
	}
	return out
}

func draftOf(r *model.AlertRule) Draft {
	return Draft{
		Code:          r.Code,
		Name:          r.Name,
		Type:          r.Type,
		Condition:     r.Condition,
		TargetValue:   r.TargetValue,
		BasePrice:     r.BasePrice,
		TimePeriod:    r.TimePeriod,
		Notifications: r.Notifications,
	}
}
