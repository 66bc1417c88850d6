package store

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pipeforge/pipeforged/internal/errs"
)

var metaBucket = []byte("objects")

// ObjectMeta is auxiliary information recorded about a committed object
// alongside its tree, useful for inspection and garbage collection but
// never part of the object identifier itself.
type ObjectMeta struct {
	StageName   string                     `json:"stage_name"`
	CommittedAt time.Time                  `json:"committed_at"`
	Size        int64                      `json:"size,omitempty"`
	Metadata    map[string]json.RawMessage `json:"metadata,omitempty"`
}

// metadataIndex is a bbolt-backed key/value store mapping object ids to
// ObjectMeta, kept separate from the plain-file refs/<name> pointers so
// the human-readable ref area never depends on a binary database format.
type metadataIndex struct {
	db *bolt.DB
}

func openMetadataIndex(path string) (*metadataIndex, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.Wrapf(ErrStoreCorrupt, "opening metadata index: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errs.Wrapf(ErrStoreCorrupt, "initializing metadata index: %w", err)
	}
	return &metadataIndex{db: db}, nil
}

func (m *metadataIndex) Close() error {
	return m.db.Close()
}

func (m *metadataIndex) put(id string, meta ObjectMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(id), data)
	})
}

func (m *metadataIndex) get(id string) (ObjectMeta, bool, error) {
	var meta ObjectMeta
	var found bool
	err := m.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metaBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &meta)
	})
	return meta, found, err
}
