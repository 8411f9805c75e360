package configstore

import (
	"fmt"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/vessel/pkg/model"
	"github.com/cuemby/vessel/pkg/wire"
)

var (
	bucketDeployment = []byte("deployment")
	bucketCA         = []byte("ca")
)

const (
	currentKey = "current"
	caKey      = "root"
)

// Store persists the authored Deployment in BoltDB and serves it from an
// in-memory cache. It satisfies pkg/control.ConfigSource.
type Store struct {
	db *bolt.DB

	mu      sync.RWMutex
	current model.Deployment

	onChangeMu sync.Mutex
	onChange   func()
}

// Open opens (creating if necessary) the BoltDB file under dataDir and
// loads any previously-applied Deployment into memory.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "vessel.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("configstore: open %s: %w", dbPath, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDeployment); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketCA)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configstore: init bucket: %w", err)
	}

	s := &Store{db: db, current: model.NewDeployment()}

	var raw []byte
	if err := db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketDeployment).Get([]byte(currentKey)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configstore: read current: %w", err)
	}
	if raw != nil {
		var d model.Deployment
		if err := wire.Unmarshal(raw, &d); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configstore: decode persisted deployment: %w", err)
		}
		s.current = d
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Current returns the last applied Deployment. Satisfies
// pkg/control.ConfigSource.
func (s *Store) Current() model.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers fn to be called after every successful Apply. Only one
// subscriber is supported — the control service's Engine.NotifyChange.
func (s *Store) OnChange(fn func()) {
	s.onChangeMu.Lock()
	s.onChange = fn
	s.onChangeMu.Unlock()
}

// Apply reads, parses, and persists the Deployment document at path,
// replacing whatever was previously applied as a whole (spec.md §3:
// "mutated only via a save operation on the persistent configuration
// store"). On success it notifies the registered OnChange subscriber.
func (s *Store) Apply(path string) error {
	d, err := loadDeploymentFile(path)
	if err != nil {
		return err
	}

	raw, err := wire.Marshal(d)
	if err != nil {
		return fmt.Errorf("configstore: encode deployment: %w", err)
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployment).Put([]byte(currentKey), raw)
	}); err != nil {
		return fmt.Errorf("configstore: persist deployment: %w", err)
	}

	s.mu.Lock()
	s.current = d
	s.mu.Unlock()

	s.onChangeMu.Lock()
	notify := s.onChange
	s.onChangeMu.Unlock()
	if notify != nil {
		notify()
	}
	return nil
}

// Dump renders the currently applied Deployment back to its YAML form, for
// `vessel config dump`.
func (s *Store) Dump() ([]byte, error) {
	return marshalDeployment(s.Current())
}

// SaveCA persists the cluster's root certificate authority material.
// Satisfies pkg/security.CAStore.
func (s *Store) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCA).Put([]byte(caKey), data)
	})
}

// GetCA retrieves the previously persisted root certificate authority
// material. Satisfies pkg/security.CAStore.
func (s *Store) GetCA() ([]byte, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketCA).Get([]byte(caKey)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("configstore: no CA persisted")
	}
	return raw, nil
}
