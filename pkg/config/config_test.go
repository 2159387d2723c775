package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, CSV(" kafka-1:9092, ,kafka-2:9092 "))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("SF_STR", "value")
	t.Setenv("SF_INT", "42")
	t.Setenv("SF_BAD_INT", "forty-two")
	t.Setenv("SF_BOOL", "true")
	t.Setenv("SF_SECONDS", "7")

	assert.Equal(t, "value", EnvDefault("SF_STR", "def"))
	assert.Equal(t, "def", EnvDefault("SF_MISSING", "def"))
	assert.Equal(t, 42, EnvIntDefault("SF_INT", 1))
	assert.Equal(t, 1, EnvIntDefault("SF_BAD_INT", 1))
	assert.True(t, EnvBoolDefault("SF_BOOL", false))
	assert.False(t, EnvBoolDefault("SF_MISSING", false))
	assert.Equal(t, 7*time.Second, EnvSecondsDefault("SF_SECONDS", time.Second))
	assert.Equal(t, time.Second, EnvSecondsDefault("SF_MISSING", time.Second))
}
