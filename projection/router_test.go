package projection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routerFixture binds every session to its own harness.
type routerFixture struct {
	harnesses map[string]*harness
	canceler  *fakeCanceler
	raw       *fakeRawLog
	router    *Router
	mu        sync.Mutex
}

func newRouterFixture(cfg Config) *routerFixture {
	f := &routerFixture{
		harnesses: make(map[string]*harness),
		canceler:  &fakeCanceler{rec: &recorder{}},
		raw:       &fakeRawLog{},
	}
	f.router = NewRouter(StaticConfig(cfg), f.bind, WithCanceler(f.canceler), WithRawLog(f.raw))
	return f
}

func (f *routerFixture) bind(sessionKey string) (Binding, error) {
	if sessionKey == "" {
		return Binding{}, errors.New("empty session key")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.harnesses[sessionKey]
	if !ok {
		h = newHarness()
		f.harnesses[sessionKey] = h
	}
	return h.binding(), nil
}

func (f *routerFixture) harness(key string) *harness {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.harnesses[key]
}

func TestRouter_OneTurnPerSession(t *testing.T) {
	f := newRouterFixture(testConfig())
	ctx := context.Background()

	turn, err := f.router.Begin(ctx, "a")
	require.NoError(t, err)
	_, err = f.router.Begin(ctx, "a")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	other, err := f.router.Begin(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.router.Active())

	require.NoError(t, f.router.Dispatch("a", doneFrame(t)))
	waitDone(t, turn)
	assert.Equal(t, []string{"b"}, f.router.Active())

	next, err := f.router.Begin(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, turn, next)

	f.router.Close(ctx)
	waitDone(t, next)
	waitDone(t, other)
	assert.Empty(t, f.router.Active())
	_, err = f.router.Begin(ctx, "c")
	assert.ErrorIs(t, err, ErrRouterClosed)
}

func TestRouter_BindError(t *testing.T) {
	f := newRouterFixture(testConfig())
	_, err := f.router.Begin(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind session")
	assert.Empty(t, f.router.Active())
}

func TestRouter_DispatchWithoutTurn(t *testing.T) {
	f := newRouterFixture(testConfig())
	err := f.router.Dispatch("ghost", textFrame(t, "hello"))
	assert.ErrorIs(t, err, ErrNoActiveTurn)
	assert.Equal(t, 1, f.raw.len())
}

func TestRouter_Abort(t *testing.T) {
	for _, trigger := range []string{"stop", "wait", "/stop", "abort", "cancel", "  STOP! "} {
		t.Run(trigger, func(t *testing.T) {
			f := newRouterFixture(testConfig())
			ctx := context.Background()
			turn, err := f.router.Begin(ctx, "a")
			require.NoError(t, err)
			require.NoError(t, f.router.Dispatch("a", textFrame(t, "working")))

			require.NoError(t, f.router.Abort(ctx, AbortRequest{SessionKey: "a", Text: trigger}))
			waitDone(t, turn)

			assert.Equal(t, []call{{Op: "cancel", Target: "a", Content: CancelReasonAbort}}, f.canceler.rec.all())
			assert.True(t, turn.Result().Cancelled)
			assert.Empty(t, f.router.Active())

			assert.ErrorIs(t, f.router.Abort(ctx, AbortRequest{SessionKey: "a", Text: trigger}), ErrNoActiveTurn)
			assert.Len(t, f.canceler.rec.all(), 1)
		})
	}
}

func TestRouter_AbortRejectsOtherText(t *testing.T) {
	f := newRouterFixture(testConfig())
	ctx := context.Background()
	turn, err := f.router.Begin(ctx, "a")
	require.NoError(t, err)

	for _, text := range []string{"please stop the build", "stopping", "", "continue"} {
		assert.ErrorIs(t, f.router.Abort(ctx, AbortRequest{SessionKey: "a", Text: text}), ErrNotAbortTrigger, text)
	}
	assert.Empty(t, f.canceler.rec.all())

	require.NoError(t, f.router.Reset(ctx, "a"))
	waitDone(t, turn)
	assert.Equal(t, []call{{Op: "cancel", Target: "a", Content: CancelReasonReset}}, f.canceler.rec.all())
	assert.ErrorIs(t, f.router.Reset(ctx, "a"), ErrNoActiveTurn)
}

func TestRouter_ConcurrentAbortsCancelOnce(t *testing.T) {
	f := newRouterFixture(testConfig())
	ctx := context.Background()
	turn, err := f.router.Begin(ctx, "a")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.router.Abort(ctx, AbortRequest{SessionKey: "a", Text: "stop"})
		}()
	}
	wg.Wait()
	waitDone(t, turn)
	assert.Len(t, f.canceler.rec.all(), 1)
}

func TestRouter_ResolvesConfigPerSession(t *testing.T) {
	resolver := resolverFunc(func(key string) Config {
		cfg := testConfig()
		if key == "quiet" {
			cfg.MetaMode = MetaOff
		}
		return cfg
	})
	f := newRouterFixture(testConfig())
	f.router = NewRouter(resolver, f.bind)
	ctx := context.Background()

	for _, key := range []string{"quiet", "loud"} {
		turn, err := f.router.Begin(ctx, key)
		require.NoError(t, err)
		require.NoError(t, f.router.Dispatch(key, toolStart(t, "t1", "Read")))
		require.NoError(t, f.router.Dispatch(key, doneFrame(t)))
		waitDone(t, turn)
	}
	assert.Zero(t, f.harness("quiet").rec.count("send"))
	assert.Equal(t, 1, f.harness("loud").rec.count("send"))
}

type resolverFunc func(string) Config

func (f resolverFunc) Resolve(key string) Config { return f(key) }
