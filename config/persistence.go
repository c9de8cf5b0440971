package config

import (
	"fmt"
	"log"

	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/quasilyte/gdata"
	"github.com/vmihailenco/msgpack/v5"
)

const predictionItemKey = "prediction"

// ItemStore is the subset of gdata.Manager used for persistence.
type ItemStore interface {
	LoadItem(itemKey string) ([]byte, error)
	SaveItem(itemKey string, data []byte) error
}

// Persistence keeps the tuned prediction defaults across restarts.
type Persistence struct {
	items ItemStore
}

// OpenPersistence initializes gdata storage for appName.
func OpenPersistence(appName string) (*Persistence, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		return nil, fmt.Errorf("open gdata: %w", err)
	}
	return NewPersistence(m), nil
}

func NewPersistence(items ItemStore) *Persistence {
	return &Persistence{items: items}
}

// LoadPrediction returns the saved defaults, or ok=false when nothing has
// been saved yet.
func (p *Persistence) LoadPrediction() (cfg PredictionConfig, ok bool, err error) {
	data, err := p.items.LoadItem(predictionItemKey)
	if err != nil {
		return PredictionConfig{}, false, fmt.Errorf("load %s: %w", predictionItemKey, err)
	}
	if len(data) == 0 {
		return PredictionConfig{}, false, nil
	}
	if err := msgpack.Unmarshal(data, &cfg); err != nil {
		return PredictionConfig{}, false, fmt.Errorf("decode %s: %w", predictionItemKey, err)
	}
	if err := cfg.Validate(); err != nil {
		return PredictionConfig{}, false, err
	}
	return cfg, true, nil
}

func (p *Persistence) SavePrediction(cfg PredictionConfig) error {
	data, err := msgpack.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", predictionItemKey, err)
	}
	if err := p.items.SaveItem(predictionItemKey, data); err != nil {
		return fmt.Errorf("save %s: %w", predictionItemKey, err)
	}
	return nil
}

// Attach seeds store from disk and saves every later change to the default.
func (p *Persistence) Attach(store *Store) {
	if saved, ok, err := p.LoadPrediction(); err != nil {
		log.Printf("[config] ignoring saved prediction config: %v", err)
	} else if ok {
		if err := store.Set(saved); err != nil {
			log.Printf("[config] saved prediction config rejected: %v", err)
		}
	}

	store.OnChange(func(_ netconfig.ConnectionID, cfg PredictionConfig, all bool) {
		if !all {
			return
		}
		if err := p.SavePrediction(cfg); err != nil {
			log.Printf("[config] %v", err)
		}
	})
}
