// Package checkpoint saves the EM state between iterations, so an
// interrupted run can be continued.
package checkpoint

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"

	"github.com/phylem/emtree/em"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// MAIN is the bucket name for all the checkpoints.
var MAIN = []byte("main")

// Data stores checkpoint data.
type Data struct {
	// Run is the identifier of the run which created the
	// checkpoint.
	Run       string    `json:"run"`
	Iteration int       `json:"iteration"`
	Final     bool      `json:"final"`
	Saved     time.Time `json:"saved"`
	State     *em.State `json:"state"`
}

// CheckpointIO saves and loads checkpoints of a single run.
type CheckpointIO struct {
	db      *bolt.DB
	key     []byte
	last    time.Time
	seconds float64
}

// Open opens or creates the checkpoint database.
func Open(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
}

// Key returns a key which is the same for the same input, e.g. file
// names and settings.
func Key(input ...string) []byte {
	id := uuid.Nil
	for _, s := range input {
		id = uuid.NewSHA1(id, []byte(s))
	}
	return []byte(id.String())
}

// NewCheckpointIO creates a new CheckpointIO. Checkpoints are
// considered old after the given number of seconds.
func NewCheckpointIO(db *bolt.DB, key []byte, seconds float64) (s *CheckpointIO) {
	s = &CheckpointIO{
		db:      db,
		key:     key,
		seconds: seconds,
	}
	return
}

// Save saves the checkpoint.
func (s *CheckpointIO) Save(data *Data) error {
	if data == nil || data.State == nil {
		return errors.New("empty checkpoint")
	}
	// Even if saving fails, we do not want to run this code too often.
	s.SetNow()
	data.Saved = s.last
	dataB, err := json.Marshal(data)
	if err != nil {
		log.Error("Error serializing checkpoint", err)
		return err
	}
	err = SaveData(s.db, s.key, dataB)
	if err != nil {
		log.Error("Error saving checkpoint", err)
		return err
	}
	log.Debugf("Saved checkpoint (iter=%v, lnL=%v)", data.Iteration, data.State.Likelihood)
	return nil
}

// Load returns the saved checkpoint or nil if there is none.
func (s *CheckpointIO) Load() (*Data, error) {
	var data *Data

	b, err := LoadData(s.db, s.key)

	if err != nil || b == nil {
		return nil, err
	}

	err = json.Unmarshal(b, &data)

	if err != nil {
		return nil, err
	}

	if data == nil || data.State == nil {
		return nil, nil
	}

	if data.Final {
		log.Noticef("Found finished EM checkpoint (iter=%v, lnL=%v)", data.Iteration, data.State.Likelihood)
	} else {
		log.Noticef("Found unfinished EM checkpoint (iter=%v, lnL=%v)", data.Iteration, data.State.Likelihood)
	}

	return data, nil
}

// Old returns true if last checkpoint save time too long ago.
func (s *CheckpointIO) Old() bool {
	return time.Since(s.last).Seconds() > s.seconds
}

// SetNow sets last checkpoint time to now.
func (s *CheckpointIO) SetNow() {
	s.last = time.Now()
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}

		// v is only valid inside the transaction
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
