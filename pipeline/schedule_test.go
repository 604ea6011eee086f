package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSchedule_Validation(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.orch.StartSchedule("every tuesday", runConfig()), ErrInvalidSchedule)
	assert.ErrorIs(t, f.orch.StartSchedule("0 * * * *", RunConfig{}), ErrInvalidRunConfig)
	assert.False(t, f.orch.Scheduled())

	require.NoError(t, f.orch.StartSchedule("0 */6 * * *", runConfig()))
	t.Cleanup(func() { <-f.orch.StopSchedule().Done() })
	assert.True(t, f.orch.Scheduled())
	assert.True(t, f.orch.NextRun().After(time.Now()))
	assert.ErrorIs(t, f.orch.StartSchedule("0 * * * *", runConfig()), ErrAlreadyScheduled)
}

func TestStopSchedule_WithoutSchedule(t *testing.T) {
	f := newFixture(t)
	select {
	case <-f.orch.StopSchedule().Done():
	default:
		t.Fatal("expected a done context")
	}
	assert.True(t, f.orch.NextRun().IsZero())
}

func TestSchedule_TriggersRuns(t *testing.T) {
	f := newFixture(t)
	f.source.posts = samplePosts()

	require.NoError(t, f.orch.StartSchedule("@every 1s", runConfig()))
	require.Eventually(t, func() bool { return f.orch.Stats().SuccessfulRuns >= 1 }, 3*time.Second, 20*time.Millisecond)
	<-f.orch.StopSchedule().Done()
	assert.False(t, f.orch.Scheduled())
}

func TestStopSchedule_LetsInFlightRunFinish(t *testing.T) {
	f := newFixture(t)
	f.source.gate = make(chan struct{})
	f.source.posts = samplePosts()

	require.NoError(t, f.orch.StartSchedule("@every 1s", runConfig()))
	require.Eventually(t, func() bool { return f.source.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)

	stopped := f.orch.StopSchedule()
	select {
	case <-stopped.Done():
		t.Fatal("stop returned before the in-flight run finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.source.gate)
	select {
	case <-stopped.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("in-flight run did not finish")
	}

	stats := f.orch.Stats()
	assert.Equal(t, 1, stats.SuccessfulRuns)
	assert.Zero(t, stats.FailedRuns)
}
