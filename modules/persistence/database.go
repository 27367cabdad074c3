// Package persistence is a small bbolt-backed store for named dumps, so a
// scene's engine state can be stashed and recalled across runs.
package persistence

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
	"go.etcd.io/bbolt"

	"github.com/rigbridge/rigbridge/modules/cli"
)

var (
	datastore *bbolt.DB
	jh        codec.JsonHandle
)

func getDB() (*bbolt.DB, error) {
	if datastore != nil {
		return datastore, nil
	}
	var err error
	datastore, err = bbolt.Open(filepath.Join(*cli.Datapath, "persistence.bbolt"), 0666, nil)
	return datastore, err
}

// Identifiable objects return their own bucket key.
type Identifiable interface {
	ID() string
}

// Store is one bucket of codec-encoded values with an optional read cache.
type Store[i Identifiable] struct {
	db         *bbolt.DB
	cache      map[string]i
	bucketname []byte
}

func GetStorage[i Identifiable](bucketname string, cached bool) (Store[i], error) {
	db, err := getDB()
	if err != nil {
		return Store[i]{}, errors.Wrap(err, "opening persistence database")
	}
	s := Store[i]{
		db:         db,
		bucketname: []byte(bucketname),
	}
	if cached {
		s.cache = make(map[string]i)
	}
	return s, nil
}

func (s Store[p]) Get(id string) (*p, bool) {
	if s.cache != nil {
		if rv, found := s.cache[id]; found {
			return &rv, true
		}
	}

	var data []byte
	s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketname)
		if b == nil {
			return nil
		}
		data = b.Get([]byte(id))
		return nil
	})
	if data == nil {
		return nil, false
	}

	var result p
	dec := codec.NewDecoderBytes(data, &jh)
	if err := dec.Decode(&result); err != nil {
		return nil, false
	}
	if s.cache != nil {
		s.cache[id] = result
	}
	return &result, true
}

func (s Store[p]) Put(saveme p) error {
	id := saveme.ID()
	if id == "" {
		return errors.New("empty ID")
	}

	var output []byte
	enc := codec.NewEncoderBytes(&output, &jh)
	if err := enc.Encode(saveme); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucketname)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), output)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache[id] = saveme
	}
	return nil
}

func (s Store[p]) Delete(id string) error {
	if s.cache != nil {
		delete(s.cache, id)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketname)
		if b == nil {
			return errors.New("key not found")
		}
		if b.Get([]byte(id)) == nil {
			return errors.New("key not found")
		}
		return b.Delete([]byte(id))
	})
}

func (s Store[p]) List() ([]p, error) {
	var result []p
	return result, s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketname)
		if b == nil {
			return nil
		}
		stats := b.Stats()
		result = make([]p, 0, stats.KeyN)
		return b.ForEach(func(k, v []byte) error {
			var data p
			dec := codec.NewDecoderBytes(v, &jh)
			if err := dec.Decode(&data); err != nil {
				return err
			}
			result = append(result, data)
			return nil
		})
	})
}
