package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/internal/domain/trust"
)

const backendMemory = "memory"

type activityRow struct {
	at   time.Time
	data []byte
}

// MemoryStore is an in-process Store. Everything is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string][]byte
	activity map[string][]activityRow // per subject, ordered by time
	eventIDs map[string]struct{}      // subject|event_id of stored activity
	current  map[string][]byte
	history  map[string][][]byte // per subject, append order
	alerts   map[string][]byte
	closed   bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newStoreOptions(opts)
	s := &MemoryStore{
		profiles: make(map[string][]byte),
		activity: make(map[string][]activityRow),
		eventIDs: make(map[string]struct{}),
		current:  make(map[string][]byte),
		history:  make(map[string][][]byte),
		alerts:   make(map[string][]byte),
		stopChan: make(chan struct{}),
	}
	if o.metricsUpdateInterval > 0 {
		s.wg.Add(1)
		go metricsUpdater(o.metricsUpdateInterval, s.stopChan, s.wg.Done, func() {
			if c, err := s.Counts(context.Background()); err == nil {
				publishCounts(c)
			}
		})
	}
	return s
}

// PutProfile implements Store.
func (s *MemoryStore) PutProfile(_ context.Context, p model.Profile) error {
	defer observe(backendMemory, "put_profile", time.Now())
	if err := requireID("subject id", p.SubjectID); err != nil {
		return err
	}
	b, err := encode(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.profiles[p.SubjectID] = b
	return nil
}

// GetProfile implements Store.
func (s *MemoryStore) GetProfile(_ context.Context, subjectID string) (model.Profile, error) {
	defer observe(backendMemory, "get_profile", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Profile{}, ErrClosed
	}
	b, ok := s.profiles[subjectID]
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: profile %q", ErrNotFound, subjectID)
	}
	return decode[model.Profile](b)
}

// AppendActivity implements Store.
func (s *MemoryStore) AppendActivity(_ context.Context, a model.Activity) error {
	defer observe(backendMemory, "append_activity", time.Now())
	if err := requireID("subject id", a.SubjectID); err != nil {
		return err
	}
	b, err := encode(a)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	id := a.SubjectID + "\x00" + a.EventID
	if _, ok := s.eventIDs[id]; ok {
		return nil
	}
	s.eventIDs[id] = struct{}{}
	rows := s.activity[a.SubjectID]
	i := sort.Search(len(rows), func(i int) bool { return rows[i].at.After(a.At) })
	rows = append(rows, activityRow{})
	copy(rows[i+1:], rows[i:])
	rows[i] = activityRow{at: a.At, data: b}
	s.activity[a.SubjectID] = rows
	return nil
}

// ListActivity implements Store.
func (s *MemoryStore) ListActivity(_ context.Context, subjectID string, since time.Time) ([]model.Activity, error) {
	defer observe(backendMemory, "list_activity", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows := s.activity[subjectID]
	start := sort.Search(len(rows), func(i int) bool { return !rows[i].at.Before(since) })
	out := make([]model.Activity, 0, len(rows)-start)
	for _, r := range rows[start:] {
		a, err := decode[model.Activity](r.data)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CurrentTrust implements Store.
func (s *MemoryStore) CurrentTrust(_ context.Context, subjectID string) (trust.Score, error) {
	defer observe(backendMemory, "current_trust", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return trust.Score{}, ErrClosed
	}
	b, ok := s.current[subjectID]
	if !ok {
		return trust.Score{}, fmt.Errorf("%w: trust score %q", ErrNotFound, subjectID)
	}
	return decode[trust.Score](b)
}

// SaveTrust implements Store.
func (s *MemoryStore) SaveTrust(_ context.Context, r trust.Result) error {
	defer observe(backendMemory, "save_trust", time.Now())
	if err := validateResult(r); err != nil {
		return err
	}
	score, err := encode(r.Score)
	if err != nil {
		return err
	}
	entry, err := encode(r.History)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	id := r.Score.SubjectID
	s.current[id] = score
	s.history[id] = append(s.history[id], entry)
	return nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, subjectID string, limit int) ([]trust.HistoryEntry, error) {
	defer observe(backendMemory, "history", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows := s.history[subjectID]
	n := len(rows)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]trust.HistoryEntry, 0, n)
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		e, err := decode[trust.HistoryEntry](rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ListTrust implements Store.
func (s *MemoryStore) ListTrust(_ context.Context) ([]trust.Score, error) {
	defer observe(backendMemory, "list_trust", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(s.current))
	for id := range s.current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]trust.Score, 0, len(ids))
	for _, id := range ids {
		sc, err := decode[trust.Score](s.current[id])
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// InsertAlerts implements Store.
func (s *MemoryStore) InsertAlerts(_ context.Context, alerts ...fraud.Alert) error {
	defer observe(backendMemory, "insert_alerts", time.Now())
	encoded := make(map[string][]byte, len(alerts))
	for _, a := range alerts {
		if err := validateAlert(a); err != nil {
			return err
		}
		if _, dup := encoded[a.ID]; dup {
			return fmt.Errorf("%w: alert %q repeated in batch", ErrConflict, a.ID)
		}
		b, err := encode(a)
		if err != nil {
			return err
		}
		encoded[a.ID] = b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for id := range encoded {
		if _, exists := s.alerts[id]; exists {
			return fmt.Errorf("%w: alert %q", ErrConflict, id)
		}
	}
	for id, b := range encoded {
		s.alerts[id] = b
	}
	return nil
}

// GetAlert implements Store.
func (s *MemoryStore) GetAlert(_ context.Context, id string) (fraud.Alert, error) {
	defer observe(backendMemory, "get_alert", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fraud.Alert{}, ErrClosed
	}
	b, ok := s.alerts[id]
	if !ok {
		return fraud.Alert{}, fmt.Errorf("%w: alert %q", ErrNotFound, id)
	}
	return decode[fraud.Alert](b)
}

// UpdateAlert implements Store.
func (s *MemoryStore) UpdateAlert(_ context.Context, a fraud.Alert) error {
	defer observe(backendMemory, "update_alert", time.Now())
	if err := validateAlert(a); err != nil {
		return err
	}
	b, err := encode(a)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.alerts[a.ID]; !ok {
		return fmt.Errorf("%w: alert %q", ErrNotFound, a.ID)
	}
	s.alerts[a.ID] = b
	return nil
}

// ListAlerts implements Store.
func (s *MemoryStore) ListAlerts(_ context.Context, f AlertFilter) ([]fraud.Alert, error) {
	defer observe(backendMemory, "list_alerts", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]fraud.Alert, 0)
	for _, b := range s.alerts {
		a, err := decode[fraud.Alert](b)
		if err != nil {
			return nil, err
		}
		if f.match(a) {
			out = append(out, a)
		}
	}
	sortAlerts(out)
	return out, nil
}

// Counts implements Store.
func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Counts{}, ErrClosed
	}
	c := Counts{
		Profiles: len(s.profiles),
		Scores:   len(s.current),
		Alerts:   len(s.alerts),
	}
	for _, rows := range s.activity {
		c.Activity += len(rows)
	}
	for _, rows := range s.history {
		c.History += len(rows)
	}
	return c, nil
}

// Close stops the metrics updater. Later calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopChan)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}
