package serverconfig

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReconfigurer struct {
	reconfigured   []map[string]string
	rollbacks      int
	rollbackStatus int
	rollbackErr    error
}

func (r *recordingReconfigurer) Reconfigure(ctx context.Context, env map[string]string) (int, error) {
	r.reconfigured = append(r.reconfigured, env)
	return http.StatusOK, nil
}

func (r *recordingReconfigurer) Rollback(ctx context.Context) (int, error) {
	r.rollbacks++
	if r.rollbackStatus == 0 {
		return http.StatusOK, r.rollbackErr
	}
	return r.rollbackStatus, r.rollbackErr
}

func TestTracker_UntouchedScenarioSkipsRollback(t *testing.T) {
	rec := &recordingReconfigurer{}
	tracker := NewTracker(rec)

	assert.False(t, tracker.Touched())
	require.NoError(t, tracker.Restore(context.Background()))
	assert.Equal(t, 0, rec.rollbacks)
}

func TestTracker_TouchedScenarioRollsBackOnce(t *testing.T) {
	rec := &recordingReconfigurer{}
	tracker := NewTracker(rec)

	_, err := tracker.Reconfigure(context.Background(), map[string]string{"OCIS_LOG_LEVEL": "debug"})
	require.NoError(t, err)
	_, err = tracker.Reconfigure(context.Background(), map[string]string{"PROXY_ENABLE_BASIC_AUTH": "true"})
	require.NoError(t, err)
	assert.True(t, tracker.Touched())

	require.NoError(t, tracker.Restore(context.Background()))
	assert.Equal(t, 1, rec.rollbacks)
	assert.False(t, tracker.Touched())

	require.NoError(t, tracker.Restore(context.Background()))
	assert.Equal(t, 1, rec.rollbacks)
}

func TestTracker_RollbackFailureStillClearsMark(t *testing.T) {
	rec := &recordingReconfigurer{rollbackStatus: http.StatusInternalServerError}
	tracker := NewTracker(rec)
	_, _ = tracker.Reconfigure(context.Background(), map[string]string{"A": "1"})

	err := tracker.Restore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.False(t, tracker.Touched())

	rec.rollbackStatus = 0
	rec.rollbackErr = errors.New("connection refused")
	_, _ = tracker.Reconfigure(context.Background(), map[string]string{"A": "1"})
	err = tracker.Restore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTrackersAreIndependent(t *testing.T) {
	rec := &recordingReconfigurer{}
	first := NewTracker(rec)
	second := NewTracker(rec)

	_, _ = first.Reconfigure(context.Background(), map[string]string{"A": "1"})
	assert.True(t, first.Touched())
	assert.False(t, second.Touched())
}
