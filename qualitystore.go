package meadow

import (
	"encoding/json"
	"fmt"

	"github.com/quasilyte/gdata"
	"github.com/sirupsen/logrus"
)

const qualityItemKey = "quality"

// itemStore is the subset of gdata.Manager the quality store needs.
type itemStore interface {
	LoadItem(key string) ([]byte, error)
	SaveItem(key string, data []byte) error
}

type savedQuality struct {
	Tier string `json:"tier"`
	Auto bool   `json:"auto"`
}

// QualityStore persists the applied quality tier between runs.
type QualityStore struct {
	store itemStore
	log   logrus.FieldLogger
}

// OpenQualityStore opens the per-user data directory for appName.
func OpenQualityStore(appName string, logger logrus.FieldLogger) (*QualityStore, error) {
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("meadow: open quality store: %w", err)
	}
	return newQualityStore(m, logger), nil
}

func newQualityStore(store itemStore, logger logrus.FieldLogger) *QualityStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &QualityStore{store: store, log: logger.WithField("component", "quality")}
}

// Load returns the saved tier and auto flag. ok is false when nothing
// usable is stored.
func (s *QualityStore) Load() (tier QualityTier, auto bool, ok bool) {
	data, err := s.store.LoadItem(qualityItemKey)
	if err != nil {
		s.log.WithError(err).Warn("could not load saved quality")
		return 0, false, false
	}
	if len(data) == 0 {
		return 0, false, false
	}
	var saved savedQuality
	if err := json.Unmarshal(data, &saved); err != nil {
		s.log.WithError(err).Warn("could not parse saved quality")
		return 0, false, false
	}
	tier, err = ParseQualityTier(saved.Tier)
	if err != nil {
		s.log.WithError(err).Warn("saved quality tier ignored")
		return 0, false, false
	}
	return tier, saved.Auto, true
}

// Save stores tier and the auto flag.
func (s *QualityStore) Save(tier QualityTier, auto bool) error {
	data, err := json.Marshal(savedQuality{Tier: tier.String(), Auto: auto})
	if err != nil {
		return err
	}
	if err := s.store.SaveItem(qualityItemKey, data); err != nil {
		return fmt.Errorf("meadow: save quality: %w", err)
	}
	return nil
}

// Attach saves every tier change applied by q. Save failures are logged.
func (s *QualityStore) Attach(q *AdaptiveQuality) {
	q.Subscribe(func(c QualityChange) {
		if err := s.Save(c.To, q.Auto()); err != nil {
			s.log.WithError(err).Warn("could not save quality")
		}
	})
}
