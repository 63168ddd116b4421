package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starstech/medtrack-sub001/internal/adapters/notify"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/platform/config"
	"github.com/starstech/medtrack-sub001/internal/platform/logger"
)

func TestSlotsFromConfig(t *testing.T) {
	slots, err := slotsFromConfig(config.ScheduleTimes{
		TwiceDaily: []string{"07:30", "19:30"},
	})
	require.NoError(t, err)
	require.Len(t, slots[medications.FrequencyTwiceDaily], 2)
	assert.Equal(t, "19:30", slots[medications.FrequencyTwiceDaily][1].String())
	assert.Empty(t, slots[medications.FrequencyOnceDaily])

	_, err = slotsFromConfig(config.ScheduleTimes{Weekly: []string{"25:00"}})
	assert.ErrorContains(t, err, "schedule.times.weekly")
}

func TestOpenStorage_MemoryWithSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
medications:
  - id: m1
    patient_id: p1
    name: Metformin
    frequency: once_daily
    start_date: "2024-06-01"
caregivers:
  - patient_id: p1
    user_id: c1
`), 0o600))

	cfg := &config.Config{Seed: config.SeedConfig{File: path}}
	store, err := openStorage(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer store.close()

	assert.Equal(t, "memory", store.kind)
	med, err := store.medications.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Metformin", med.Name)

	users, err := store.recipients.RecipientsFor(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "c1"}, users)
}

func TestOpenSink(t *testing.T) {
	cfg := &config.Config{}
	sink, err := openSink(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogSink{}, sink)

	cfg.Notify.Webhook.URL = "http://127.0.0.1:1/hook"
	cfg.Notify.Webhook.QueueSize = 4
	sink, err = openSink(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	wh, ok := sink.(*notify.WebhookSink)
	require.True(t, ok)
	require.NoError(t, wh.Close(context.Background()))
}

func TestOpenVerifier(t *testing.T) {
	cfg := &config.Config{}
	v, err := openVerifier(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, v)

	cfg.Auth.VerifyURL = "https://iam.local/v1/tokens/verify"
	cfg.Auth.APIKey = "k"
	v, err = openVerifier(cfg, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, v)
}
