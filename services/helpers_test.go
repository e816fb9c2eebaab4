package services

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"listing-chat/config"
	"listing-chat/crypto"
	"listing-chat/models"
	"listing-chat/workers"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	keys       *crypto.KeyManager
	directory  *ConversationDirectory
	messages   *MessageService
	dispatcher *workers.Dispatcher
	hub        *Hub
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.InitDB(config.Database{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "chat.db"),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := zerolog.Nop()
	keys := crypto.NewKeyManager()

	d := workers.NewDispatcher(4, 16, crypto.Decrypt)
	d.Start()
	t.Cleanup(d.Stop)

	hub := NewHub(64, log)
	directory := NewConversationDirectory(db, keys, NewGormListingCatalog(db), log)
	return &fixture{
		db:         db,
		keys:       keys,
		directory:  directory,
		messages:   NewMessageService(db, directory, keys, d, hub, DefaultMaxMessageLength, log),
		dispatcher: d,
		hub:        hub,
	}
}

// steppedClock returns strictly increasing timestamps.
func steppedClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(step)
		return now
	}
}

func (f *fixture) addListing(t *testing.T, id, sellerID string) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Listing{ID: id, SellerID: sellerID, Title: "listing " + id}).Error)
}

// shufflingDecrypter returns the dispatcher's results in a random order.
type shufflingDecrypter struct {
	inner Decrypter
	rng   *rand.Rand
}

func (s *shufflingDecrypter) DecryptAll(ctx context.Context, records []workers.Record, key crypto.Key) ([]workers.Result, error) {
	results, err := s.inner.DecryptAll(ctx, records, key)
	if err != nil {
		return nil, err
	}
	s.rng.Shuffle(len(results), func(i, j int) { results[i], results[j] = results[j], results[i] })
	return results, nil
}

type recordingPublisher struct {
	events []Event
}

func (p *recordingPublisher) Publish(e Event) { p.events = append(p.events, e) }
