package debounce_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favorsweb/internal/debounce"
)

type results struct {
	mu  sync.Mutex
	got []string
}

func (r *results) add(q string, v string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		v = "err:" + err.Error()
	}
	r.got = append(r.got, q+"="+v)
}

func (r *results) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestFunc_OnlyLastInputRuns(t *testing.T) {
	var calls atomic.Int32
	var res results
	d := debounce.New(20*time.Millisecond, func(_ context.Context, q string) (string, error) {
		calls.Add(1)
		return "found " + q, nil
	}, res.add)

	ctx := context.Background()
	for _, q := range []string{"a", "al", "ali", "alic"} {
		d.Call(ctx, q)
	}
	d.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"alic=found alic"}, res.all())
}

func TestFunc_BlankResolvesWithoutCall(t *testing.T) {
	var calls atomic.Int32
	var res results
	d := debounce.New(20*time.Millisecond, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "x", nil
	}, res.add)

	d.Call(context.Background(), "bob")
	d.Call(context.Background(), "   ")
	d.Wait()

	assert.Zero(t, calls.Load())
	assert.Equal(t, []string{"   ="}, res.all())
}

func TestFunc_NewInputCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	var res results
	d := debounce.New(time.Millisecond, func(ctx context.Context, q string) (string, error) {
		if q == "slow" {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ok", nil
	}, res.add)

	ctx := context.Background()
	d.Call(ctx, "slow")
	<-started
	d.Call(ctx, "fast")
	d.Wait()

	assert.Equal(t, []string{"fast=ok"}, res.all())
}

func TestFunc_SpacedInputsEachRun(t *testing.T) {
	var calls atomic.Int32
	var res results
	d := debounce.New(5*time.Millisecond, func(_ context.Context, q string) (string, error) {
		calls.Add(1)
		return q, nil
	}, res.add)

	d.Call(context.Background(), "one")
	d.Wait()
	d.Call(context.Background(), "two")
	d.Wait()

	require.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"one=one", "two=two"}, res.all())
}

func TestFunc_Cancel(t *testing.T) {
	var calls atomic.Int32
	d := debounce.New(10*time.Millisecond, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", nil
	}, nil)

	d.Call(context.Background(), "q")
	d.Cancel()
	d.Wait()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
