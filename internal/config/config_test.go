package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMustLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
Storage:
  RedisAddr: "127.0.0.1:6379"
Push:
  UseStub: true
`)

	config := MustLoad(path)

	assert.Equal(t, DefaultHTTPAddress, config.App.Addr)
	assert.Equal(t, DefaultIdempotencyTTL, config.App.IdempotencyTTL)
	assert.Equal(t, DefaultListEventsTopic, config.NSQ.ListEventsTopic)
	assert.Equal(t, DefaultFeedbackTopic, config.NSQ.FeedbackTopic)
	assert.Equal(t, DefaultNSQChannel, config.NSQ.Channel)
	assert.Equal(t, DefaultNSQMaxAttempts, config.NSQ.MaxConsumeAttemptsBeforeDLQ)
	assert.Equal(t, DefaultDLQTopicSuffix, config.NSQ.DLQTopicSuffix)
	assert.Equal(t, DefaultRedisNamespace, config.Storage.Namespace)
	assert.Equal(t, DefaultBodyMaxLength, config.Notify.BodyMaxLength)
	assert.Equal(t, DefaultNotifyImagePath, config.Notify.ImagePath)
	assert.Equal(t, DefaultNotifyLinkPath, config.Notify.DefaultLink)
	assert.Equal(t, DefaultPushMaxConcurrent, config.Push.MaxConcurrent)
}

func TestMustLoadExplicitValuesWin(t *testing.T) {
	path := writeTempConfig(t, `
App:
  Addr: ":9090"
  IdempotencyTTL: 10m
NSQ:
  ListEventsTopic: "custom-updates"
  MaxConsumeAttemptsBeforeDLQ: 3
Push:
  GatewayURL: "https://gateway.local/send"
  Timeout: 2s
Notify:
  BodyMaxLength: 50
`)

	config := MustLoad(path)

	assert.Equal(t, ":9090", config.App.Addr)
	assert.Equal(t, 10*time.Minute, config.App.IdempotencyTTL)
	assert.Equal(t, "custom-updates", config.NSQ.ListEventsTopic)
	assert.Equal(t, 3, config.NSQ.MaxConsumeAttemptsBeforeDLQ)
	assert.Equal(t, "https://gateway.local/send", config.Push.GatewayURL)
	assert.Equal(t, 2*time.Second, config.Push.Timeout)
	assert.Equal(t, 50, config.Notify.BodyMaxLength)
}

func TestMustLoadRequiresGatewayOrStub(t *testing.T) {
	path := writeTempConfig(t, `
Storage:
  RedisAddr: "127.0.0.1:6379"
`)

	assert.Panics(t, func() {
		MustLoad(path)
	})
}

func TestMustLoadMissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
