package scheduler

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestAddJob_RejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("every now and then", &countingJob{})
	assert.ErrorContains(t, err, "counting")
	assert.Equal(t, 0, s.Entries())
}

func TestAddJob_AcceptsFiveAndSixFieldSchedules(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("*/5 * * * *", &countingJob{}))
	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{}))
	require.NoError(t, s.AddJob("@every 10m", &countingJob{}))
	require.NoError(t, s.AddJob("@daily", &countingJob{}))
	assert.Equal(t, 4, s.Entries())
}

type blockingJob struct {
	started atomic.Int32
	release chan struct{}
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run() error {
	j.started.Add(1)
	<-j.release
	return nil
}

func TestScheduler_SkipsTickWhileJobRuns(t *testing.T) {
	var buf bytes.Buffer
	s := New(zerolog.New(&buf))
	job := &blockingJob{release: make(chan struct{})}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	require.Eventually(t, func() bool { return job.started.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(1), job.started.Load())

	close(job.release)
	s.Stop()
	assert.Contains(t, buf.String(), "skip")
}

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}
