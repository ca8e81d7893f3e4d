package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	"github.com/dropDatabas3/usersvc/internal/metrics"
	"github.com/dropDatabas3/usersvc/internal/store/memory"
)

type flakyRepo struct {
	repository.ActivityRepository
	failures int32 // cuántas llamadas fallan antes de delegar
	calls    atomic.Int32
}

func (f *flakyRepo) Append(ctx context.Context, rec repository.ActivityRecord) error {
	n := f.calls.Add(1)
	if n <= f.failures {
		return errors.New("db down")
	}
	return f.ActivityRepository.Append(ctx, rec)
}

type captureSink struct{ got []repository.ActivityRecord }

func (c *captureSink) Name() string { return "capture" }
func (c *captureSink) Write(_ context.Context, rec repository.ActivityRecord) error {
	c.got = append(c.got, rec)
	return nil
}

func TestRecord_PersistsAndFansOut(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sink := &captureSink{}
	r := NewRecorder(Deps{Store: st.Activities(), Sinks: []Sink{sink}, Logger: zap.NewNop()})

	r.Record(ctx, Entry{Actor: "admin", ActorRole: "super_admin", Action: ActionLogin, Success: true, IPAddress: "10.0.0.1"})
	r.Record(ctx, Entry{Actor: "ghost", Action: ActionLogin, Error: "invalid credentials"})

	recs, total, err := st.Activities().List(ctx, repository.ActivityFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "ghost", recs[0].Actor)
	require.Equal(t, repository.ResultFailure, recs[0].Result)
	require.Equal(t, repository.ResultSuccess, recs[1].Result)
	require.NotEmpty(t, recs[1].ID)
	require.Len(t, sink.got, 2)
}

func TestRecord_RetriesTransientFailures(t *testing.T) {
	st := memory.New()
	repo := &flakyRepo{ActivityRepository: st.Activities(), failures: 2}
	m, err := metrics.New()
	require.NoError(t, err)
	r := NewRecorder(Deps{Store: repo, Backoff: time.Millisecond, Metrics: m, Logger: zap.NewNop()})

	r.Record(context.Background(), Entry{Actor: "admin", Action: ActionLogout, Success: true})

	require.Equal(t, int32(3), repo.calls.Load())
	_, total, err := st.Activities().List(context.Background(), repository.ActivityFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Contains(t, mustGather(t, m), "usersvc_audit_records_total")
}

func TestRecord_FinalFailureIsCountedNotReturned(t *testing.T) {
	st := memory.New()
	repo := &flakyRepo{ActivityRepository: st.Activities(), failures: 100}
	m, err := metrics.New()
	require.NoError(t, err)
	r := NewRecorder(Deps{Store: repo, MaxAttempts: 3, Backoff: time.Millisecond, Metrics: m, Logger: zap.NewNop()})

	require.NotPanics(t, func() {
		r.Record(context.Background(), Entry{Actor: "admin", Action: ActionSetRole, Target: "student01", Success: true})
	})
	require.Equal(t, int32(3), repo.calls.Load())

	n, err := testutil.GatherAndCount(m.Gatherer(), "usersvc_audit_write_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRecord_CancelledContextStillWrites(t *testing.T) {
	st := memory.New()
	r := NewRecorder(Deps{Store: st.Activities(), Logger: zap.NewNop()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.Record(ctx, Entry{Actor: "admin", Action: ActionActivate, Success: true})
	_, total, err := st.Activities().List(context.Background(), repository.ActivityFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() { r.Record(context.Background(), Entry{Action: ActionLogin}) })
}

func TestValidAction(t *testing.T) {
	require.True(t, ValidAction("set_role"))
	require.False(t, ValidAction("drop_table"))
}

func mustGather(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	mfs, err := m.Gatherer().Gather()
	require.NoError(t, err)
	var names string
	for _, mf := range mfs {
		names += mf.GetName() + "\n"
	}
	return names
}
