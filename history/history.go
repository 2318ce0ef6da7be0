package history

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	. "github.com/stevegt/goadapt"
	bolt "go.etcd.io/bbolt"
)

var (
	entriesBucket = []byte("entries")
	metaBucket    = []byte("meta")
	versionKey    = []byte("version")
)

// Entry is one completed prompt/response exchange.
type Entry struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Model       string    `json:"model"`
	Sysmsg      string    `json:"sysmsg,omitempty"`
	Prompt      string    `json:"prompt"`
	Response    string    `json:"response"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Store is a local transcript of completions kept in a bolt file.
// Entries are keyed by the bucket sequence so cursor order is
// insertion order.
type Store struct {
	bdb  *bolt.DB
	path string
}

// Open opens a history database, creating it if it doesn't exist, and
// migrates it to the current schema version.  was and now report the
// schema version before and after migration.
func Open(path string) (s *Store, migrated bool, was, now string, err error) {
	defer Return(&err)
	s = &Store{path: path}
	opts := &bolt.Options{Timeout: 10 * time.Second}
	s.bdb, err = bolt.Open(path, 0600, opts)
	Ck(err)
	migrated, was, now, err = s.migrate()
	if err != nil {
		s.bdb.Close()
		s = nil
		return
	}
	return
}

// Path returns the file path of the database.
func (s *Store) Path() string {
	return s.path
}

// Close closes the db.
func (s *Store) Close() (err error) {
	defer Return(&err)
	err = s.bdb.Close()
	Ck(err)
	return
}

// Add stores e, filling in ID and Time when they are empty.
func (s *Store) Add(e *Entry) (err error) {
	defer Return(&err)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	buf, err := json.Marshal(e)
	Ck(err)
	err = s.bdb.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(entriesBucket)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), buf)
	})
	Ck(err)
	Debug("history: added entry %s", e.ID)
	return
}

// List returns up to limit entries, newest first.  A limit of zero or
// less returns everything.
func (s *Store) List(limit int) (entries []*Entry, err error) {
	defer Return(&err)
	err = s.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			e := &Entry{}
			if err := json.Unmarshal(v, e); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	Ck(err)
	return
}

// Count returns the number of stored entries.
func (s *Store) Count() (n int, err error) {
	defer Return(&err)
	err = s.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	Ck(err)
	return
}

// Clear removes all entries.
func (s *Store) Clear() (err error) {
	defer Return(&err)
	err = s.bdb.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(entriesBucket) != nil {
			if err := tx.DeleteBucket(entriesBucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	Ck(err)
	return
}

// Version returns the schema version stored in the db.
func (s *Store) Version() (version string, err error) {
	defer Return(&err)
	err = s.bdb.View(func(tx *bolt.Tx) error {
		version = readVersion(tx)
		return nil
	})
	Ck(err)
	return
}

func readVersion(tx *bolt.Tx) string {
	b := tx.Bucket(metaBucket)
	if b == nil {
		return ""
	}
	return string(b.Get(versionKey))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
