package publisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/bidsniper/internal/model"
	bserrors "sjsage522/bidsniper/pkg/errors"
)

type memPublisher struct {
	keys     []string
	messages [][]byte
}

func (m *memPublisher) Publish(key string, message []byte) error {
	m.keys = append(m.keys, key)
	m.messages = append(m.messages, message)
	return nil
}

func (m *memPublisher) TrimStreams() error { return nil }
func (m *memPublisher) Close() error       { return nil }

func TestPublishOutcome(t *testing.T) {
	p := &memPublisher{}
	out := model.Outcome{TaskID: "t-1", Name: "lamp", Site: model.SiteTaitung, Status: model.StatusAborted, Price: model.Price(900)}

	require.NoError(t, PublishOutcome(p, out))
	assert.Equal(t, []string{"t-1"}, p.keys)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(p.messages[0], &decoded))
	assert.Equal(t, "aborted", decoded["status"])
	assert.Equal(t, "900", decoded["price"])
	assert.Equal(t, "lamp", decoded["name"])
}

func TestNewSinkSelection(t *testing.T) {
	p, err := New(context.Background(), Settings{Sink: SinkNone})
	assert.NoError(t, err)
	assert.Nil(t, p)

	_, err = New(context.Background(), Settings{Sink: "carrier-pigeon"})
	assert.True(t, bserrors.IsType(err, bserrors.ErrorTypeConfiguration))

	_, err = New(context.Background(), Settings{Sink: SinkKafka})
	assert.Error(t, err)

	p, err = New(context.Background(), Settings{Sink: "Redis", RedisAddr: "localhost:6379", RedisStream: "x"})
	require.NoError(t, err)
	assert.IsType(t, &RedisPublisher{}, p)
	p.Close()
}
