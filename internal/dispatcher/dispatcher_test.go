package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pathsim/bikesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if len(m) >= len(prefix) && m[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	require.NoError(t, err)

	return d, logger
}

func TestDispatcher_SyncFanOut(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var order []string
	d.Register("a", func(s core.Sample) error {
		order = append(order, "a")
		return nil
	})
	d.Register("b", func(s core.Sample) error {
		order = append(order, "b")
		return nil
	})

	require.NoError(t, d.Dispatch(core.Sample{Time: 1}))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 2, d.Len())
	assert.True(t, d.HasSink("b"))
	assert.False(t, d.HasSink("c"))
	assert.NoError(t, d.Err())
}

func TestDispatcher_NoSinks(t *testing.T) {
	d, _ := newTestDispatcher(t)
	assert.NoError(t, d.Dispatch(core.Sample{}))
	d.Close()
}

func TestDispatcher_ErrorsAreJoinedAndRemembered(t *testing.T) {
	d, _ := newTestDispatcher(t)

	boom := errors.New("boom")
	var okCalls int
	d.Register("bad", func(core.Sample) error { return boom })
	d.Register("good", func(core.Sample) error {
		okCalls++
		return nil
	})

	err := d.Dispatch(core.Sample{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, 1, okCalls, "a failing sink does not stop the others")

	d.OnSample(core.Sample{})
	assert.Equal(t, 2, okCalls)

	stored := d.Err()
	require.Error(t, stored)
	assert.ErrorIs(t, stored, boom)
}

func TestDispatcher_BufferedSink(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register("slow", func(core.Sample) error {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil
	}, Buffered(100), Blocking())

	for i := 0; i < 20; i++ {
		require.NoError(t, d.Dispatch(core.Sample{Time: float64(i)}))
	}

	d.Close()
	assert.Equal(t, int32(20), processed.Load())

	// closing twice is harmless
	d.Close()
}

func TestDispatcher_BufferedSinkKeepsOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var times []float64
	d.Register("ordered", func(s core.Sample) error {
		times = append(times, s.Time)
		return nil
	}, Buffered(4), Blocking())

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Dispatch(core.Sample{Time: float64(i)}))
	}
	d.Close()

	require.Len(t, times, 50)
	for i, v := range times {
		assert.Equal(t, float64(i), v)
	}
}

func TestDispatcher_BufferedSinkDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	d.Register("stuck", func(core.Sample) error {
		<-release
		return nil
	}, Buffered(1))

	var dropped int
	for i := 0; i < 10; i++ {
		if err := d.Dispatch(core.Sample{}); err != nil {
			assert.Contains(t, err.Error(), "queue full: stuck")
			dropped++
		}
	}
	close(release)
	d.Close()

	// one sample is in flight and one queued at most
	assert.GreaterOrEqual(t, dropped, 8)
}

func TestDispatcher_BufferedSinkErrorsSurfaceThroughErr(t *testing.T) {
	d, _ := newTestDispatcher(t)

	boom := errors.New("disk full")
	d.Register("async", func(core.Sample) error { return boom }, Buffered(10), Blocking())

	require.NoError(t, d.Dispatch(core.Sample{}))
	d.Close()

	assert.ErrorIs(t, d.Err(), boom)
}

func TestDispatcher_Logged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	fail := false
	d.Register("logged", func(core.Sample) error {
		if fail {
			return errors.New("nope")
		}
		return nil
	}, Logged())

	require.NoError(t, d.Dispatch(core.Sample{}))
	assert.Equal(t, 2, logger.count("DEBUG: "))

	fail = true
	require.Error(t, d.Dispatch(core.Sample{}))
	assert.Equal(t, 1, logger.count("ERROR: sample failed"))
}
