package logger

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu    sync.Mutex
	types []string
}

func (c *capturePublisher) Broadcast(msgType string, _ any) {
	c.mu.Lock()
	c.types = append(c.types, msgType)
	c.mu.Unlock()
}

func TestRecent_KeepsNewestEntries(t *testing.T) {
	r := NewRecent(3)
	log := zerolog.New(r)

	for _, msg := range []string{"one", "two", "three", "four"} {
		log.Info().Str("component", "test").Msg(msg)
	}

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "four", entries[2].Message)
	assert.Equal(t, "test", entries[2].Component)
	assert.Equal(t, "info", entries[2].Level)
}

func TestRecent_PartialBuffer(t *testing.T) {
	r := NewRecent(10)
	log := zerolog.New(r)

	log.Warn().Int("attempt", 2).Msg("retrying")

	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].Level)
	assert.EqualValues(t, 2, entries[0].Fields["attempt"])
}

func TestRecent_DropsMalformed(t *testing.T) {
	r := NewRecent(2)
	n, err := r.Write([]byte("not json"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Empty(t, r.Entries())
}

func TestRecent_Publishes(t *testing.T) {
	r := NewRecent(2)
	pub := &capturePublisher{}
	r.SetPublisher(pub)

	logger := zerolog.New(r)
	logger.Info().Msg("hello")

	assert.Equal(t, []string{"log:entry"}, pub.types)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
}
