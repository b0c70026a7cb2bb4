package kafka

import (
	"testing"

	"docingest-go/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestBrokersSplitsList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, brokers(config.KafkaConfig{Brokers: " a:9092, ,b:9092 "}))
	assert.Empty(t, brokers(config.KafkaConfig{}))
}
