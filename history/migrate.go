package history

import (
	"fmt"
	"os"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/semver"
	bolt "go.etcd.io/bbolt"
)

// Version is the current history schema version.
const Version = "1.0.0"

// migrate brings the db schema up to Version.  A brand new db is
// stamped with Version and reported as not migrated.
func (s *Store) migrate() (migrated bool, was, now string, err error) {
	defer Return(&err)

	err = s.bdb.Update(func(tx *bolt.Tx) error {
		was = readVersion(tx)
		if was == "" {
			if tx.Bucket(entriesBucket) == nil {
				// new db
				return stamp(tx, Version)
			}
			// entries without a meta bucket predate versioning
			was = "0.1.0"
		}
		current := was

		// loop until migrations are done
		for {
			dbver, err := semver.Parse([]byte(current))
			if err != nil {
				return err
			}
			codever, err := semver.Parse([]byte(Version))
			if err != nil {
				return err
			}
			cmp := semver.Cmp(dbver, codever)
			if cmp == 0 {
				break
			}
			if cmp > 0 {
				return fmt.Errorf("history db %s is version %s, but this is version %s -- upgrade deepseek-agent", s.path, current, Version)
			}
			Fpf(os.Stderr, "migrating history db from %s\n", current)
			current, err = migrateOneVersion(tx, current)
			if err != nil {
				return err
			}
			migrated = true
		}
		return stamp(tx, current)
	})
	if err != nil {
		return
	}
	now = Version
	if was == "" {
		was = Version
	}
	return
}

// migrateOneVersion migrates the schema from version to the next
// version and returns the new version.
func migrateOneVersion(tx *bolt.Tx, version string) (next string, err error) {
	switch version {
	case "0.1.0":
		// add the meta bucket; entries are unchanged
		_, err = tx.CreateBucketIfNotExists(metaBucket)
		next = "1.0.0"
	default:
		err = fmt.Errorf("history migration missing: from version: %s", version)
	}
	return
}

func stamp(tx *bolt.Tx, version string) error {
	if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
		return err
	}
	b, err := tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return err
	}
	return b.Put(versionKey, []byte(version))
}
