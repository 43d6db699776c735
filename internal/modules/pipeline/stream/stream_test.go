package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type snap struct {
	Items []string `json:"items"`
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s := New("test")
	v := &snap{Items: []string{"a"}}
	require.NoError(t, s.Snapshot(v, false))
	v.Items = append(v.Items, "b")
	require.NoError(t, s.Snapshot(v, true))
	s.Close()

	frames, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 2)

	var first, last snap
	require.NoError(t, frames[0].Decode(&first))
	require.NoError(t, frames[1].Decode(&last))
	assert.Equal(t, []string{"a"}, first.Items)
	assert.Equal(t, []string{"a", "b"}, last.Items)
	assert.False(t, frames[0].Final)
	assert.True(t, frames[1].Final)
	assert.Equal(t, 1, frames[0].Seq)
	assert.Equal(t, 2, frames[1].Seq)
}

func TestEmitNeverBlocksWithoutConsumer(t *testing.T) {
	s := New("test")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			_ = s.Emit(TypeCriterionComplete, "C1", map[string]int{"i": i})
		}
		s.Close()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked")
	}

	frames, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 10000)
	for i, f := range frames {
		assert.Equal(t, i+1, f.Seq)
	}
}

func TestConcurrentProducerConsumerPreservesOrder(t *testing.T) {
	s := New("test")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = s.Emit(TypeStage, "stage", i)
		}
		s.Close()
	}()

	var got []int
	err := s.Each(context.Background(), func(f Frame) error {
		var n int
		require.NoError(t, f.Decode(&n))
		got = append(got, n)
		return nil
	})
	wg.Wait()
	require.NoError(t, err)
	require.Len(t, got, 500)
	for i := range got {
		assert.Equal(t, i, got[i])
	}
}

func TestEmitAfterCloseFails(t *testing.T) {
	s := New("test")
	s.Close()
	s.Close()
	assert.ErrorIs(t, s.Emit(TypeStage, "x", nil), ErrClosed)
	_, ok, err := s.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestFailEmitsErrorFrameAndCloses(t *testing.T) {
	s := New("test")
	s.Fail("generation_failed", errors.New("no structured result"))

	frames, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeError, frames[0].Type)
	assert.Equal(t, "generation_failed", frames[0].Error.Code)
	select {
	case <-s.Done():
	default:
		t.Fatal("stream not closed")
	}
}

func TestNextHonorsContext(t *testing.T) {
	s := New("test")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := s.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	s.Close()
}

func TestUnencodablePayload(t *testing.T) {
	s := New("test")
	err := s.Emit(TypeStage, "x", make(chan int))
	assert.Error(t, err)
	s.Close()
}
