package sleeplock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireRelease(t *testing.T) {
	assert := assert.New(t)
	l := MkLock("test")
	assert.False(l.Holding())
	l.Acquire()
	assert.True(l.Holding())
	assert.False(l.TryAcquire(), "already held")
	l.Release()
	assert.False(l.Holding())
	assert.True(l.TryAcquire())
	l.Release()
}

func TestReleaseUnheld(t *testing.T) {
	l := MkLock("test")
	assert.PanicsWithValue(t, "releasesleep: test", func() { l.Release() })
}

func TestWaiterWakes(t *testing.T) {
	l := MkLock("test")
	l.Acquire()

	done := make(chan struct{})
	go func() {
		l.Acquire()
		close(done)
	}()

	for l.Waiters() == 0 {
		time.Sleep(time.Millisecond)
	}
	select {
	case <-done:
		t.Fatal("acquired a held lock")
	default:
	}
	l.Release()
	<-done
	assert.True(t, l.Holding(), "waiter now holds the lock")
	l.Release()
}

func TestMutualExclusion(t *testing.T) {
	l := MkLock("counter")
	n := 0
	var wg sync.WaitGroup
	const nthread = 16
	wg.Add(nthread)
	for i := 0; i < nthread; i++ {
		go func() {
			for j := 0; j < 1000; j++ {
				l.Acquire()
				n += 1
				l.Release()
			}
			wg.Done()
		}()
	}
	wg.Wait()
	assert.Equal(t, nthread*1000, n)
}
