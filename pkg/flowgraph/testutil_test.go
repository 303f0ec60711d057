package flowgraph

import (
	"context"
	"sync"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

// Test keys used across tests.
var (
	keyInput  = NewKey[int]("input")
	keyFirst  = NewKey[int]("first")
	keySecond = NewKey[int]("second")
	keyThird  = NewKey[int]("third")
)

// fastRetry retries three times without waiting.
var fastRetry = fgerrors.NewRetryConfig(fgerrors.WithMaxAttempts(3), fgerrors.WithWait(0))

// tracker records stage events from any goroutine.
type tracker struct {
	mu     sync.Mutex
	events []string
}

func (t *tracker) add(e string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

func (t *tracker) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// addStage reads from, adds delta and publishes to.
type addStage struct {
	from, to Key[int]
	delta    int
	track    *tracker
}

func (s addStage) Prepare(shared *Shared) (int, error) {
	return s.from.Get(shared)
}

func (s addStage) Execute(ctx Context, in int) (int, error) {
	if s.track != nil {
		s.track.add(ctx.NodeID())
	}
	return in + s.delta, nil
}

func (s addStage) Publish(ctx Context, shared *Shared, _ int, out int) error {
	return s.to.Put(shared, ctx.NodeID(), out)
}

// funcStage adapts closures to Stage. Nil hooks pass through.
type funcStage[I, O any] struct {
	prepare func(*Shared) (I, error)
	execute func(Context, I) (O, error)
	publish func(Context, *Shared, I, O) error
}

func (s funcStage[I, O]) Prepare(shared *Shared) (I, error) {
	if s.prepare == nil {
		var zero I
		return zero, nil
	}
	return s.prepare(shared)
}

func (s funcStage[I, O]) Execute(ctx Context, in I) (O, error) {
	if s.execute == nil {
		var zero O
		return zero, nil
	}
	return s.execute(ctx, in)
}

func (s funcStage[I, O]) Publish(ctx Context, shared *Shared, in I, out O) error {
	if s.publish == nil {
		return nil
	}
	return s.publish(ctx, shared, in, out)
}

// fakeNode lets compile tests use IDs NewNode would reject.
type fakeNode struct {
	id string
}

func (n fakeNode) ID() string                        { return n.id }
func (n fakeNode) RetryPolicy() fgerrors.RetryConfig { return fgerrors.NoRetry }
func (n fakeNode) prepare(*Shared) (step, error)     { return nil, nil }

// linearRunner chains input -> first -> second -> third, adding one each time.
func linearRunner(track *tracker) *Runner {
	runner, err := NewChain().
		Then(NewNode("one", addStage{from: keyInput, to: keyFirst, delta: 1, track: track})).
		Then(NewNode("two", addStage{from: keyFirst, to: keySecond, delta: 1, track: track})).
		Then(NewNode("three", addStage{from: keySecond, to: keyThird, delta: 1, track: track})).
		Compile()
	if err != nil {
		panic(err)
	}
	return runner
}

// seeded returns a shared store with input set.
func seeded(v int) *Shared {
	s := NewShared()
	if err := keyInput.Seed(s, v); err != nil {
		panic(err)
	}
	return s
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
