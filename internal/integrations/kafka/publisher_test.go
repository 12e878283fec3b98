package kafka

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/turbolytics/registrar/pkg/reconciler"
)

func TestNewPublisher(t *testing.T) {
	t.Run("parses topic brokers and settings", func(t *testing.T) {
		u, err := url.Parse("kafka://localhost:9092/registrar.outcomes?linger.ms=10")
		require.NoError(t, err)

		p, err := NewPublisher(u, "run-1", zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "registrar.outcomes", p.topic)
		assert.Equal(t, "localhost:9092", p.config["bootstrap.servers"])
		assert.Equal(t, "10", p.config["linger.ms"])
	})

	t.Run("missing topic", func(t *testing.T) {
		u, _ := url.Parse("kafka://localhost:9092")
		_, err := NewPublisher(u, "run-1", zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("missing broker", func(t *testing.T) {
		u, _ := url.Parse("kafka:///topic")
		_, err := NewPublisher(u, "run-1", zap.NewNop())
		assert.Error(t, err)
	})
}

func TestRecordOutcomeWithoutConnect(t *testing.T) {
	u, _ := url.Parse("kafka://localhost:9092/topic")
	p, err := NewPublisher(u, "run-1", zap.NewNop())
	require.NoError(t, err)

	p.RecordOutcome(reconciler.Outcome{Asset: reconciler.Asset{ID: "1", Name: "svc"}, Status: reconciler.StatusLinked})

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.WriteErrorCount)
	assert.Equal(t, int64(0), stats.TotalMessages)
	assert.NoError(t, p.Close(context.Background()))
}

func TestNewMessage(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMessage("run-1", reconciler.Outcome{
		Asset:  reconciler.Asset{ID: "i2", Name: "svc-b"},
		Status: reconciler.StatusCreateFailed,
		Err:    errors.New("boom"),
	}, ts)

	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, "i2", m.Line.LinkKey)
	assert.Equal(t, "boom", m.Line.Error)
	assert.Equal(t, ts, m.Timestamp)
}
