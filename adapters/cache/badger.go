// Package cache persists template sets in an embedded badger store, so the
// expensive realization loop runs once per field and exposure.
package cache

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

// BadgerCache is a TemplateCache over a badger key-value store.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens (or creates) a cache at the given directory.
func NewBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.ResourceError("opening template cache", err)
	}
	return &BadgerCache{db: db}, nil
}

// NewInMemoryCache opens a cache that lives only for the process, for tests
// and one-off runs.
func NewInMemoryCache() (*BadgerCache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.ResourceError("opening in-memory template cache", err)
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}

func (c *BadgerCache) Load(key ports.TemplateKey) (*spectra.TemplateSet, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.NotFound("cached templates for field " + key.FieldName)
	}
	if err != nil {
		return nil, errors.ResourceError("reading template cache", err)
	}

	var set spectra.TemplateSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, errors.DataError("cached templates are corrupt: " + err.Error())
	}
	return &set, nil
}

func (c *BadgerCache) Store(key ports.TemplateKey, set *spectra.TemplateSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return errors.DataError("encoding templates: " + err.Error())
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(key), raw)
	})
	if err != nil {
		return errors.ResourceError("writing template cache", err)
	}
	return nil
}

func cacheKey(key ports.TemplateKey) []byte {
	return []byte(fmt.Sprintf("templates/%s/%.2fyr/e%d/l%d",
		key.FieldName, key.ExposureYears, key.EnergyBins, key.LbinWidth))
}
