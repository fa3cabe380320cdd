// Package storage is the append-only mutation log the Router's
// MutationSink persists to before mutations are treated as durable
// (spec §5 "a database write for a batch of mutations is atomic from
// the router's perspective; it awaits the transaction's completion
// before treating the mutations as applied").
//
// Grounded on channeldb/db.go's bbolt-wrapper DB shape (Open/Wipe,
// byteOrder = binary.BigEndian) and channeldb/graph.go's manual
// binary.Write/binary.Read field-by-field codec idiom, generalized from
// channel-graph records to mc.Mutation entries.
package storage

import (
	"os"
	"path/filepath"

	goerrors "github.com/go-errors/errors"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/sig"
	bolt "go.etcd.io/bbolt"
)

const (
	dbName           = "creditrouter.db"
	dbFilePermission = 0600
)

// friendsBucket is the sole top-level bucket; it holds one nested bucket
// per friend public key, each in turn holding one nested bucket per
// currency, keyed at the leaf by an 8-byte big-endian sequence number.
var friendsBucket = []byte("friends")

// DB is the mutation log's datastore.
type DB struct {
	*bolt.DB
	dbPath string
}

// Open opens (creating if necessary) the mutation log at dbPath.
func Open(dbPath string) (*DB, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(dbPath, dbName)
	bdb, err := bolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	db := &DB{DB: bdb, dbPath: dbPath}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(friendsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	stgLog.Infof("opened mutation log at %s", path)
	return db, nil
}

// Wipe deletes all persisted mutation history, in a single atomic
// transaction.
func (d *DB) Wipe() error {
	return d.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(friendsBucket)
		if err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err = tx.CreateBucket(friendsBucket)
		return err
	})
}

// AppendMutations implements router.MutationSink: it persists muts for
// (friend, currency) in one atomic transaction, assigning each an
// increasing sequence number so ReplayAll can recover log order.
func (d *DB) AppendMutations(friend sig.PublicKey, currency string, muts []mc.Mutation) error {
	if len(muts) == 0 {
		return nil
	}

	return d.Update(func(tx *bolt.Tx) error {
		leaf, err := currencyBucket(tx, friend, currency)
		if err != nil {
			return err
		}

		for _, m := range muts {
			seq, err := leaf.NextSequence()
			if err != nil {
				return err
			}
			raw, err := encodeMutation(m)
			if err != nil {
				return goerrors.Errorf("encoding mutation: %v", err)
			}
			if err := leaf.Put(seqKey(seq), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplayAll reconstructs the MutualCredit state for every (friend,
// currency) pair found in the log by applying each persisted mutation in
// sequence order (spec §8 "replaying the persisted mutation log
// produces a state bytewise equal to the state captured at log-end").
// The state passed to newCurrency is consulted for each currency's
// max-debt bounds, mirroring how the caller already knows those from its
// own configuration rather than the log re-deriving them.
func (d *DB) ReplayAll(newCurrency func(friend sig.PublicKey, currency string) *mc.MutualCredit) (map[sig.PublicKey]map[string]*mc.MutualCredit, error) {
	out := make(map[sig.PublicKey]map[string]*mc.MutualCredit)

	var friendCount, mutationCount int
	err := d.View(func(tx *bolt.Tx) error {
		friends := tx.Bucket(friendsBucket)
		if friends == nil {
			return nil
		}

		return friends.ForEach(func(friendKey, v []byte) error {
			if v != nil {
				return nil
			}
			var pk sig.PublicKey
			copy(pk[:], friendKey)
			friendCount++

			friendBucket := friends.Bucket(friendKey)
			return friendBucket.ForEach(func(curKey, v []byte) error {
				if v != nil {
					return nil
				}
				currency := string(curKey)
				leaf := friendBucket.Bucket(curKey)

				credit := newCurrency(pk, currency)
				err := leaf.ForEach(func(_, raw []byte) error {
					m, err := decodeMutation(raw)
					if err != nil {
						return goerrors.Errorf("decoding mutation for %x/%s: %v", friendKey, currency, err)
					}
					credit.Apply(m)
					mutationCount++
					return nil
				})
				if err != nil {
					return err
				}

				if out[pk] == nil {
					out[pk] = make(map[string]*mc.MutualCredit)
				}
				out[pk][currency] = credit
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	stgLog.Infof("replayed %d mutations across %d friends", mutationCount, friendCount)
	return out, nil
}

func currencyBucket(tx *bolt.Tx, friend sig.PublicKey, currency string) (*bolt.Bucket, error) {
	friends := tx.Bucket(friendsBucket)
	friendBucket, err := friends.CreateBucketIfNotExists(friend[:])
	if err != nil {
		return nil, err
	}
	return friendBucket.CreateBucketIfNotExists([]byte(currency))
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	byteOrder.PutUint64(k[:], seq)
	return k[:]
}
