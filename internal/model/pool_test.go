package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
	"github.com/Brownie44l1/tensor-bridge/internal/testutil"
)

func fakeLoader(l *testutil.FakeLoader) Loader {
	return LoaderFunc(func(ctx context.Context) (Interpreter, error) {
		f, err := l.Load(ctx)
		if err != nil {
			return nil, wrap("load", "fake", ErrInterpreter, err)
		}
		return f, nil
	})
}

func smallInput() []byte {
	return make([]byte, 4*tensor.ImageShape(2, 2, 3).Size())
}

func smallFake() *testutil.FakeInterpreter {
	f := testutil.NewFakeInterpreter()
	f.InputShape = tensor.ImageShape(2, 2, 3)
	f.OutputShape = tensor.ImageShape(2, 2, 1)
	f.Delay = 5 * time.Millisecond
	return f
}

func TestPoolSerializesEachInterpreter(t *testing.T) {
	loader := &testutil.FakeLoader{New: smallFake}
	pool, err := NewPool(context.Background(), fakeLoader(loader), 3, nil)
	require.NoError(t, err)
	require.Len(t, loader.Loaded, 3)

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := pool.Invoke(context.Background(), smallInput())
			assert.NoError(t, err)
			assert.Len(t, out, 16)
		}()
	}
	wg.Wait()

	var total int64
	for _, f := range loader.Loaded {
		assert.LessOrEqual(t, f.MaxActive(), int32(1))
		total += f.Calls()
	}
	assert.Equal(t, int64(24), total)

	require.NoError(t, pool.Close())
	for _, f := range loader.Loaded {
		assert.Equal(t, int32(1), f.CloseCalls())
	}
}

func TestPoolAcquireHonoursContext(t *testing.T) {
	loader := &testutil.FakeLoader{New: func() *testutil.FakeInterpreter {
		f := smallFake()
		f.Delay = time.Second
		return f
	}}
	pool, err := NewPool(context.Background(), fakeLoader(loader), 1, nil)
	require.NoError(t, err)
	defer pool.Close()

	busy := make(chan struct{})
	go func() {
		close(busy)
		_, _ = pool.Invoke(context.Background(), smallInput())
	}()
	<-busy
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = pool.Invoke(ctx, smallInput())
	assert.ErrorIs(t, err, ErrInterpreter)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolLoadFailureClosesLoaded(t *testing.T) {
	loader := &testutil.FakeLoader{New: smallFake, FailAt: 3}
	_, err := NewPool(context.Background(), fakeLoader(loader), 4, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterpreter)
	assert.ErrorIs(t, err, testutil.ErrFakeLoad)

	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "load", ee.Op)

	require.Len(t, loader.Loaded, 2)
	for _, f := range loader.Loaded {
		assert.Equal(t, int32(1), f.CloseCalls())
	}
}

func TestPoolClosed(t *testing.T) {
	loader := &testutil.FakeLoader{New: smallFake}
	pool, err := NewPool(context.Background(), fakeLoader(loader), 1, nil)
	require.NoError(t, err)
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err = pool.Invoke(context.Background(), smallInput())
	assert.ErrorIs(t, err, ErrInterpreter)
}

func TestNewPoolRejectsSize(t *testing.T) {
	_, err := NewPool(context.Background(), fakeLoader(&testutil.FakeLoader{}), 0, nil)
	assert.Error(t, err)
}

func TestPerRequestLoadsAndCloses(t *testing.T) {
	loader := &testutil.FakeLoader{New: smallFake}
	pr := PerRequest{Loader: fakeLoader(loader)}

	for i := 0; i < 3; i++ {
		_, err := pr.Invoke(context.Background(), smallInput())
		require.NoError(t, err)
	}
	require.Len(t, loader.Loaded, 3)
	for _, f := range loader.Loaded {
		assert.Equal(t, int64(1), f.Calls())
		assert.Equal(t, int32(1), f.CloseCalls())
	}

	// closed on the error path too
	failing := &testutil.FakeLoader{New: func() *testutil.FakeInterpreter {
		f := smallFake()
		f.Err = errors.New("boom")
		return f
	}}
	_, err := PerRequest{Loader: fakeLoader(failing)}.Invoke(context.Background(), smallInput())
	require.Error(t, err)
	assert.Equal(t, int32(1), failing.Loaded[0].CloseCalls())
}

func TestEngineErrorUnwrap(t *testing.T) {
	cause := errors.New("ort: bad input")
	err := wrap("invoke", "model.onnx", ErrPrediction, cause)

	assert.ErrorIs(t, err, ErrPrediction)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInterpreter)
	assert.Contains(t, err.Error(), "model.onnx")
	assert.Contains(t, err.Error(), "invoke")
}
