package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
)

type captured struct {
	subject string
	data    []byte
}

func TestNATSPublisher_SubjectPerEventType(t *testing.T) {
	var got []captured
	p := newPublisher("buildtrigger.runs", func(s string, d []byte) error {
		got = append(got, captured{s, d})
		return nil
	}, nil)

	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, RunEvent{Type: RunStarted, RunID: 1, CorrelationID: "abc", Stage: "fetching"}))
	require.NoError(t, p.Publish(ctx, RunEvent{Type: RunFailed, RunID: 1, Stage: "failed", FailedStage: "building", Message: "exit status 2"}))

	require.Len(t, got, 2)
	assert.Equal(t, "buildtrigger.runs.started", got[0].subject)
	assert.Equal(t, "buildtrigger.runs.failed", got[1].subject)

	var ev RunEvent
	require.NoError(t, json.Unmarshal(got[1].data, &ev))
	assert.Equal(t, RunFailed, ev.Type)
	assert.Equal(t, "building", ev.FailedStage)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestNATSPublisher_PublishErrorIsClassified(t *testing.T) {
	p := newPublisher("x", func(string, []byte) error { return errors.New("connection closed") }, nil)
	err := p.Publish(context.Background(), RunEvent{Type: RunSucceeded})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryEvents))
}

func TestNATSPublisher_FlushUsesContextDeadline(t *testing.T) {
	var flushTimeout time.Duration
	p := newPublisher("x", func(string, []byte) error { return nil }, func(d time.Duration) error {
		flushTimeout = d
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Publish(ctx, RunEvent{Type: RunSucceeded}))
	assert.Greater(t, flushTimeout, time.Duration(0))
	assert.LessOrEqual(t, flushTimeout, 500*time.Millisecond)
}

func TestNewNATSPublisher_RequiresURL(t *testing.T) {
	_, err := NewNATSPublisher(config.EventsConfig{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), RunEvent{Type: RunStarted}))
	assert.NoError(t, p.Close())
}
