package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/session-gate/internal/events"
)

func TestAuditWorker_LogsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartAuditWorker(dispatcher, zap.New(core))

	require.NoError(t, dispatcher.Publish(context.Background(),
		events.New(events.EventSignedOut, "user-7", time.Now(), nil)))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "signed_out", entries[0].Message)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "user-7", entries[0].ContextMap()["subject_id"])
}

func TestAuditWorker_RefusedRenewalIsWarning(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartAuditWorker(dispatcher, zap.New(core))

	require.NoError(t, dispatcher.Publish(context.Background(),
		events.New(events.EventRenewalRefused, "user-7", time.Now(), events.RenewalRefusedPayload{Reason: "user not found"})))

	entries := logs.FilterMessage("renewal_refused").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap(), "payload")
}
