package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recon "position_engine/internal/modules/reconciler/service"
	"position_engine/internal/notify"
	"position_engine/pkg/logger"
)

type steps struct {
	calls      []string
	restoreErr error
	syncErr    error
	ready      bool
}

func (s *steps) Load(context.Context) int {
	s.calls = append(s.calls, "instruments")
	return 3
}

func (s *steps) Restore(context.Context) (int, error) {
	s.calls = append(s.calls, "restore")
	return 2, s.restoreErr
}

func (s *steps) Sync(context.Context) (recon.Result, error) {
	s.calls = append(s.calls, "sync")
	return recon.Result{Exchange: 2}, s.syncErr
}

func (s *steps) SetReady(v bool) {
	s.calls = append(s.calls, "ready")
	s.ready = v
}

func TestStartupOrder(t *testing.T) {
	logger.UseNop()
	s := &steps{}
	rec := &notify.Recorder{}

	require.NoError(t, NewStartup(s, s, s, rec, false).Run(context.Background()))
	assert.Equal(t, []string{"instruments", "restore", "sync", "ready"}, s.calls)
	assert.True(t, s.ready)
	assert.Len(t, rec.Messages(), 1)
}

func TestStartupSurvivesSyncFailure(t *testing.T) {
	logger.UseNop()
	s := &steps{syncErr: errors.New("timeout")}

	require.NoError(t, NewStartup(s, s, s, nil, false).Run(context.Background()))
	assert.True(t, s.ready)
}

func TestStartupStopsWhenStoreUnreadable(t *testing.T) {
	logger.UseNop()
	s := &steps{restoreErr: errors.New("corrupt")}

	err := NewStartup(s, s, s, nil, true).Run(context.Background())
	require.Error(t, err)
	assert.False(t, s.ready)
	assert.NotContains(t, s.calls, "sync")
}
