// Package nvstore implements the typed key/value config store over a
// single bbolt bucket, replacing the original NVS-backed contract
// (get_int/get_string/set_int/set_string/erase/erase_wildcard/dump).
package nvstore

import (
	"strconv"
	"strings"

	"github.com/eriksl/esp32-sub000/internal/fault"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("config")

type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fault.Wrapf(fault.Hard, err, "open config store %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fault.Wrap(fault.Hard, err, "create config bucket")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetString(key string) (string, bool) {
	var val string
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			val, found = string(v), true
		}
		return nil
	})
	return val, found
}

func (s *Store) GetInt(key string) (int64, bool) {
	raw, ok := s.GetString(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Store) SetString(key, value string) error {
	if len(value) > 63 {
		return fault.New(fault.Validation, "config value exceeds 63 bytes")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
}

func (s *Store) SetInt(key string, value int64) error {
	return s.SetString(key, strconv.FormatInt(value, 10))
}

func (s *Store) Erase(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// EraseWildcard removes every key with the given prefix.
func (s *Store) EraseWildcard(prefix string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Dump() map[string]string {
	out := map[string]string{}
	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out
}
