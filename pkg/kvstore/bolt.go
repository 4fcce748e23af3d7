package kvstore

import (
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("forkchat")

// BoltStore keeps all keys in a single bucket of a bbolt file. bbolt holds an exclusive
// file lock, so only one process can have the store open.
type BoltStore struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open bolt store %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not create bucket")
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Get(key string) ([]byte, bool, error) {
	var ret []byte
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		v := bucket.Get([]byte(key))
		if v == nil {
			return nil
		}
		// bolt values are only valid for the lifetime of the transaction
		ret = append([]byte{}, v...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "could not read %s", key)
	}
	return ret, found, nil
}

func (b *BoltStore) Set(key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
	return errors.Wrapf(err, "could not write %s", key)
}

func (b *BoltStore) Delete(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
	return errors.Wrapf(err, "could not delete %s", key)
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

var _ Store = (*BoltStore)(nil)
