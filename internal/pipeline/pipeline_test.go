package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chunkOf(id uint64, vals ...float32) Chunk {
	return Chunk{ID: id, Samples: vals}
}

// S1: Rechunker<3,2> fed [1,2,3],[4,5,6],[7,8,9] yields [1,2],[3,4],[5,6],[7,8]; 9 retained.
func TestRechunkerRegroupsAndRetainsResidue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Chunk, 1)
	r, out := NewRechunker(ctx, in, 2, testLogger())
	defer r.Close()

	in <- chunkOf(0, 1, 2, 3)
	in <- chunkOf(1, 4, 5, 6)
	in <- chunkOf(2, 7, 8, 9)

	want := [][]float32{{1, 2}, {3, 4}, {5, 6}, {7, 8}}
	for i, w := range want {
		select {
		case got := <-out:
			assert.Equal(t, w, got.Samples, "chunk %d", i)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for chunk %d", i)
		}
	}
}

// S2: Delay(3) fed A,B,C,D yields A,B only; C,D remain queued.
func TestDelayHoldsBackFixedDepth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Chunk, 1)
	d, out := NewDelay(ctx, in, 3, testLogger())
	defer d.Close()

	chunks := []Chunk{chunkOf(0, 1), chunkOf(1, 2), chunkOf(2, 3), chunkOf(3, 4)}
	for _, c := range chunks {
		select {
		case in <- c:
		case <-time.After(time.Second):
			t.Fatal("timed out feeding input")
		}
	}

	var got []Chunk
	for i := 0; i < 2; i++ {
		select {
		case c := <-out:
			got = append(got, c)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for output %d", i)
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, uint64(0), got[0].ID)
	assert.Equal(t, uint64(1), got[1].ID)

	select {
	case c, ok := <-out:
		t.Fatalf("expected no further output, got %+v ok=%v", c, ok)
	case <-time.After(50 * time.Millisecond):
	}
}

// S3: Tee<1,2> fed chunk X; both branches receive X exactly once.
func TestTeeFansOutToEveryBranch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Chunk, 1)
	tee, outs := NewTee(ctx, in, 2, testLogger())
	defer tee.Close()

	x := chunkOf(0, 9, 9, 9)
	in <- x

	for i, o := range outs {
		select {
		case got := <-o:
			assert.Equal(t, x.Samples, got.Samples, "branch %d", i)
		case <-time.After(time.Second):
			t.Fatalf("branch %d never received chunk", i)
		}
	}
}

func TestTeeClosePropagatesAndJoinsWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Chunk, 1)
	tee, outs := NewTee(ctx, in, 2, testLogger())

	require.NoError(t, tee.Close())
	for _, o := range outs {
		_, ok := <-o
		assert.False(t, ok)
	}
}

// S4/S5: Matcher chain [w, c] with timeouts; fast-path fire and timeout reset.
func TestMatcherFastPathFiresAction(t *testing.T) {
	var exitCode int
	var exited bool

	m := NewMatcher([]MatchRule{{
		Name: "wake",
		Chain: []MatchStage{
			{Model: "w", Threshold: 0.5, Timeout: time.Second},
			{Model: "c", Threshold: 0.5, Timeout: 500 * time.Millisecond},
		},
		Action: "exit:7",
	}}, testLogger())
	m.exit = func(code int) { exited = true; exitCode = code }

	t0 := time.Now()
	m.Evaluate(t0, map[string]float32{"w": 0.9})
	assert.False(t, exited)

	m.Evaluate(t0.Add(200*time.Millisecond), map[string]float32{"c": 0.8})
	require.True(t, exited)
	assert.Equal(t, 7, exitCode)
}

func TestMatcherTimeoutReturnsToIdle(t *testing.T) {
	var exited bool

	m := NewMatcher([]MatchRule{{
		Name: "wake",
		Chain: []MatchStage{
			{Model: "w", Threshold: 0.5, Timeout: time.Second},
			{Model: "c", Threshold: 0.5, Timeout: 500 * time.Millisecond},
		},
		Action: "exit:7",
	}}, testLogger())
	m.exit = func(int) { exited = true }

	t0 := time.Now()
	m.Evaluate(t0, map[string]float32{"w": 0.9})
	m.Evaluate(t0.Add(600*time.Millisecond), map[string]float32{"c": 0.0})

	assert.False(t, exited)
	entry := m.rules["wake"]
	assert.Equal(t, -1, entry.state.stageIdx)
}

func TestMatcherSingleStageFiresImmediately(t *testing.T) {
	var exited bool
	m := NewMatcher([]MatchRule{{
		Name:   "quick",
		Chain:  []MatchStage{{Model: "w", Threshold: 0.5, Timeout: time.Second}},
		Action: "exit:1",
	}}, testLogger())
	m.exit = func(int) { exited = true }

	m.Evaluate(time.Now(), map[string]float32{"w": 0.9})
	assert.True(t, exited)
}

func TestMatcherOnFireCallbackReceivesRuleName(t *testing.T) {
	var fired string
	m := NewMatcher([]MatchRule{{
		Name:   "quick",
		Chain:  []MatchStage{{Model: "w", Threshold: 0.5, Timeout: time.Second}},
		Action: "exit:1",
	}}, testLogger())
	m.exit = func(int) {}
	m.OnFire(func(ruleName string) { fired = ruleName })

	m.Evaluate(time.Now(), map[string]float32{"w": 0.9})
	assert.Equal(t, "quick", fired)
}

func TestFilterClampsAtBoundaries(t *testing.T) {
	f := Filter{Scale: 1.0, Low: 0.0, High: 1.0}
	assert.Equal(t, float32(0.0), f.Apply(0.0))
	assert.Equal(t, float32(1.0), f.Apply(1.0))
	assert.Equal(t, float32(1.0), f.Apply(1.5))
	assert.Equal(t, float32(0.0), f.Apply(-0.5))
}

func TestSamplerClosesChannelOnSourceEOF(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{r: newSilence(640 * 4)}
	s, out := NewSampler(ctx, src, 640, 1.0, testLogger())
	defer s.Close()

	count := 0
	for range out {
		count++
	}
	assert.GreaterOrEqual(t, count, 1)
}

type fakeSource struct {
	r io.Reader
}

func (f *fakeSource) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *fakeSource) Close() error               { return nil }

func newSilence(n int) io.Reader {
	return io.LimitReader(zeroReader{}, int64(n))
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
