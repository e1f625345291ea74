package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/internal/domain/trust"
)

const backendBolt = "bolt"

// Bucket names.
var (
	bucketProfiles     = []byte("profiles")
	bucketActivity     = []byte("activity")
	bucketTrustCurrent = []byte("trust_current")
	bucketTrustHistory = []byte("trust_history")
	bucketAlerts       = []byte("alerts")
	// bucketActivityIDs indexes subject|event_id for idempotent appends.
	bucketActivityIDs = []byte("activity_ids")
)

var allBuckets = [][]byte{bucketProfiles, bucketActivity, bucketActivityIDs, bucketTrustCurrent, bucketTrustHistory, bucketAlerts}

// keySep separates the subject id from the ordered suffix in composite keys.
const keySep = 0x00

// BoltStore is a Store backed by a single bbolt file.
//
// Activity keys are subject|unixnano|event_id and history keys are
// subject|sequence, both big-endian so a cursor walks them in order.
type BoltStore struct {
	db *bolt.DB

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string, opts ...Option) (*BoltStore, error) {
	o := newStoreOptions(opts)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      o.openTimeout,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &BoltStore{db: db, stopChan: make(chan struct{})}
	if o.metricsUpdateInterval > 0 {
		s.wg.Add(1)
		go metricsUpdater(o.metricsUpdateInterval, s.stopChan, s.wg.Done, func() {
			if c, err := s.Counts(context.Background()); err == nil {
				publishCounts(c)
			}
		})
	}
	return s, nil
}

func subjectPrefix(subjectID string) []byte {
	return append([]byte(subjectID), keySep)
}

func activityKey(a model.Activity) []byte {
	k := subjectPrefix(a.SubjectID)
	k = binary.BigEndian.AppendUint64(k, uint64(a.At.UnixNano()))
	return append(k, a.EventID...)
}

func historyKey(subjectID string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(subjectPrefix(subjectID), seq)
}

func wrapBolt(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}

func (s *BoltStore) put(bucket []byte, key []byte, v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	return wrapBolt(s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, b)
	}))
}

func getOne[T any](s *BoltStore, bucket []byte, key string, kind string) (T, error) {
	var out T
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket).Get([]byte(key))
		if b == nil {
			return fmt.Errorf("%w: %s %q", ErrNotFound, kind, key)
		}
		v, err := decode[T](b)
		out = v
		return err
	})
	return out, wrapBolt(err)
}

// PutProfile implements Store.
func (s *BoltStore) PutProfile(_ context.Context, p model.Profile) error {
	defer observe(backendBolt, "put_profile", time.Now())
	if err := requireID("subject id", p.SubjectID); err != nil {
		return err
	}
	return s.put(bucketProfiles, []byte(p.SubjectID), p)
}

// GetProfile implements Store.
func (s *BoltStore) GetProfile(_ context.Context, subjectID string) (model.Profile, error) {
	defer observe(backendBolt, "get_profile", time.Now())
	return getOne[model.Profile](s, bucketProfiles, subjectID, "profile")
}

// AppendActivity implements Store.
func (s *BoltStore) AppendActivity(_ context.Context, a model.Activity) error {
	defer observe(backendBolt, "append_activity", time.Now())
	if err := requireID("subject id", a.SubjectID); err != nil {
		return err
	}
	b, err := encode(a)
	if err != nil {
		return err
	}
	return wrapBolt(s.db.Update(func(tx *bolt.Tx) error {
		ids := tx.Bucket(bucketActivityIDs)
		idKey := append(subjectPrefix(a.SubjectID), a.EventID...)
		if ids.Get(idKey) != nil {
			return nil
		}
		key := activityKey(a)
		if err := ids.Put(idKey, key); err != nil {
			return err
		}
		return tx.Bucket(bucketActivity).Put(key, b)
	}))
}

// ListActivity implements Store.
func (s *BoltStore) ListActivity(_ context.Context, subjectID string, since time.Time) ([]model.Activity, error) {
	defer observe(backendBolt, "list_activity", time.Now())
	prefix := subjectPrefix(subjectID)
	seek := prefix
	if !since.IsZero() {
		seek = binary.BigEndian.AppendUint64(append([]byte(nil), prefix...), uint64(since.UnixNano()))
	}
	out := make([]model.Activity, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketActivity).Cursor()
		for k, v := c.Seek(seek); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			a, err := decode[model.Activity](v)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, wrapBolt(err)
	}
	return out, nil
}

// CurrentTrust implements Store.
func (s *BoltStore) CurrentTrust(_ context.Context, subjectID string) (trust.Score, error) {
	defer observe(backendBolt, "current_trust", time.Now())
	return getOne[trust.Score](s, bucketTrustCurrent, subjectID, "trust score")
}

// SaveTrust implements Store.
func (s *BoltStore) SaveTrust(_ context.Context, r trust.Result) error {
	defer observe(backendBolt, "save_trust", time.Now())
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
	id := r.Score.SubjectID
	return wrapBolt(s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketTrustCurrent).Put([]byte(id), score); err != nil {
			return err
		}
		hist := tx.Bucket(bucketTrustHistory)
		seq, err := hist.NextSequence()
		if err != nil {
			return err
		}
		return hist.Put(historyKey(id, seq), entry)
	}))
}

// History implements Store.
func (s *BoltStore) History(_ context.Context, subjectID string, limit int) ([]trust.HistoryEntry, error) {
	defer observe(backendBolt, "history", time.Now())
	prefix := subjectPrefix(subjectID)
	// The first key after every subject|seq key.
	end := append(append([]byte(nil), prefix...), bytes.Repeat([]byte{0xff}, 9)...)

	out := make([]trust.HistoryEntry, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTrustHistory).Cursor()
		k, v := c.Seek(end)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			e, err := decode[trust.HistoryEntry](v)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, wrapBolt(err)
	}
	return out, nil
}

// ListTrust implements Store.
func (s *BoltStore) ListTrust(_ context.Context) ([]trust.Score, error) {
	defer observe(backendBolt, "list_trust", time.Now())
	out := make([]trust.Score, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrustCurrent).ForEach(func(_, v []byte) error {
			sc, err := decode[trust.Score](v)
			if err != nil {
				return err
			}
			out = append(out, sc)
			return nil
		})
	})
	if err != nil {
		return nil, wrapBolt(err)
	}
	return out, nil
}

// InsertAlerts implements Store.
func (s *BoltStore) InsertAlerts(_ context.Context, alerts ...fraud.Alert) error {
	defer observe(backendBolt, "insert_alerts", time.Now())
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
	return wrapBolt(s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketAlerts)
		for id := range encoded {
			if bkt.Get([]byte(id)) != nil {
				return fmt.Errorf("%w: alert %q", ErrConflict, id)
			}
		}
		for id, b := range encoded {
			if err := bkt.Put([]byte(id), b); err != nil {
				return err
			}
		}
		return nil
	}))
}

// GetAlert implements Store.
func (s *BoltStore) GetAlert(_ context.Context, id string) (fraud.Alert, error) {
	defer observe(backendBolt, "get_alert", time.Now())
	return getOne[fraud.Alert](s, bucketAlerts, id, "alert")
}

// UpdateAlert implements Store.
func (s *BoltStore) UpdateAlert(_ context.Context, a fraud.Alert) error {
	defer observe(backendBolt, "update_alert", time.Now())
	if err := validateAlert(a); err != nil {
		return err
	}
	b, err := encode(a)
	if err != nil {
		return err
	}
	return wrapBolt(s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketAlerts)
		if bkt.Get([]byte(a.ID)) == nil {
			return fmt.Errorf("%w: alert %q", ErrNotFound, a.ID)
		}
		return bkt.Put([]byte(a.ID), b)
	}))
}

// ListAlerts implements Store.
func (s *BoltStore) ListAlerts(_ context.Context, f AlertFilter) ([]fraud.Alert, error) {
	defer observe(backendBolt, "list_alerts", time.Now())
	out := make([]fraud.Alert, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAlerts).ForEach(func(_, v []byte) error {
			a, err := decode[fraud.Alert](v)
			if err != nil {
				return err
			}
			if f.match(a) {
				out = append(out, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrapBolt(err)
	}
	sortAlerts(out)
	return out, nil
}

// Counts implements Store.
func (s *BoltStore) Counts(_ context.Context) (Counts, error) {
	var c Counts
	err := s.db.View(func(tx *bolt.Tx) error {
		c.Profiles = tx.Bucket(bucketProfiles).Stats().KeyN
		c.Activity = tx.Bucket(bucketActivity).Stats().KeyN
		c.Scores = tx.Bucket(bucketTrustCurrent).Stats().KeyN
		c.History = tx.Bucket(bucketTrustHistory).Stats().KeyN
		c.Alerts = tx.Bucket(bucketAlerts).Stats().KeyN
		return nil
	})
	return c, wrapBolt(err)
}

// Close stops the metrics updater and closes the file.
func (s *BoltStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
