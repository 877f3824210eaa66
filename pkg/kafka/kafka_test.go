package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/frdsvc/pkg/config"
)

func TestNotConfigured(t *testing.T) {
	_, err := NewConsumer(config.KafkaConfig{Topic: "frd-notifications", GroupID: "frdsvc"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConstructWithoutBroker(t *testing.T) {
	// 构造不会连接 broker
	cfg := config.KafkaConfig{
		Brokers: []string{"127.0.0.1:1"},
		Topic:   "frd-notifications",
		GroupID: "frdsvc",
	}
	c, err := NewConsumer(cfg)
	require.NoError(t, err)
	assert.True(t, c.IsConnected())
	assert.NoError(t, c.Close())

	p, err := NewProducer(cfg)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
