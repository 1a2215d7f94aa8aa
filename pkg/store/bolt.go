package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/praetorian-inc/kwmatch/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketKeywords = []byte("keywords")
	keyMeta        = []byte("meta")
)

// KeywordStore persists dictionaries and their live keyword sets so that
// keywords added or deleted at runtime survive a restart. Each dictionary
// gets its own top-level bucket holding a "meta" record and a "keywords"
// sub-bucket keyed by keyword.
type KeywordStore struct {
	db *bolt.DB
}

// OpenKeywordStore opens (or creates) a keyword database at path.
func OpenKeywordStore(path string) (*KeywordStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &KeywordStore{db: db}, nil
}

// Close closes the underlying database.
func (k *KeywordStore) Close() error {
	return k.db.Close()
}

// PutDictionary replaces the stored dictionary d, keywords included.
func (k *KeywordStore) PutDictionary(d *types.Dictionary) error {
	if d.ID == "" {
		return fmt.Errorf("dictionary id is required")
	}
	meta := *d
	meta.Keywords = nil
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal dictionary: %w", err)
	}

	return k.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(d.ID)) != nil {
			if err := tx.DeleteBucket([]byte(d.ID)); err != nil {
				return err
			}
		}
		db, err := tx.CreateBucket([]byte(d.ID))
		if err != nil {
			return err
		}
		if err := db.Put(keyMeta, metaJSON); err != nil {
			return err
		}
		kb, err := db.CreateBucket(bucketKeywords)
		if err != nil {
			return err
		}
		for _, kw := range d.Keywords {
			if kw == "" {
				continue
			}
			if err := kb.Put([]byte(kw), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddKeyword records kw in dictionary dictID. It reports whether the
// keyword was new. The dictionary must exist.
func (k *KeywordStore) AddKeyword(dictID, kw string) (bool, error) {
	if kw == "" {
		return false, nil
	}
	added := false
	err := k.db.Update(func(tx *bolt.Tx) error {
		kb, err := keywordBucket(tx, dictID)
		if err != nil {
			return err
		}
		if kb.Get([]byte(kw)) != nil {
			return nil
		}
		added = true
		return kb.Put([]byte(kw), nil)
	})
	return added, err
}

// DeleteKeyword removes kw from dictionary dictID and reports whether it
// was present.
func (k *KeywordStore) DeleteKeyword(dictID, kw string) (bool, error) {
	removed := false
	err := k.db.Update(func(tx *bolt.Tx) error {
		kb, err := keywordBucket(tx, dictID)
		if err != nil {
			return err
		}
		if kb.Get([]byte(kw)) == nil {
			return nil
		}
		removed = true
		return kb.Delete([]byte(kw))
	})
	return removed, err
}

// DeleteDictionary drops a dictionary and its keywords.
func (k *KeywordStore) DeleteDictionary(dictID string) error {
	return k.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(dictID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("dictionary %s: %w", dictID, ErrNotFound)
		}
		return err
	})
}

// Dictionary loads one dictionary. Keywords come back in byte order.
func (k *KeywordStore) Dictionary(dictID string) (*types.Dictionary, error) {
	var d *types.Dictionary
	err := k.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dictID))
		if b == nil {
			return fmt.Errorf("dictionary %s: %w", dictID, ErrNotFound)
		}
		var err error
		d, err = readDictionary(b)
		return err
	})
	return d, err
}

// Dictionaries loads every stored dictionary, ordered by ID.
func (k *KeywordStore) Dictionaries() ([]*types.Dictionary, error) {
	var out []*types.Dictionary
	err := k.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(_ []byte, b *bolt.Bucket) error {
			d, err := readDictionary(b)
			if err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}

func keywordBucket(tx *bolt.Tx, dictID string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(dictID))
	if b == nil {
		return nil, fmt.Errorf("dictionary %s: %w", dictID, ErrNotFound)
	}
	kb := b.Bucket(bucketKeywords)
	if kb == nil {
		return nil, fmt.Errorf("dictionary %s: missing keyword bucket", dictID)
	}
	return kb, nil
}

// readDictionary decodes a dictionary bucket. Values are copied out since
// bbolt slices are only valid within the transaction.
func readDictionary(b *bolt.Bucket) (*types.Dictionary, error) {
	var d types.Dictionary
	if v := b.Get(keyMeta); v != nil {
		if err := json.Unmarshal(v, &d); err != nil {
			return nil, fmt.Errorf("unmarshal dictionary: %w", err)
		}
	}
	d.Keywords = []string{}
	if kb := b.Bucket(bucketKeywords); kb != nil {
		err := kb.ForEach(func(key, _ []byte) error {
			d.Keywords = append(d.Keywords, string(key))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	d.StructuralID = d.ComputeStructuralID()
	return &d, nil
}
