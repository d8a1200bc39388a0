package ringchan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingChannel_KeepsNewest(t *testing.T) {
	rc := New[int](3)

	for i := 0; i < 10; i++ {
		rc.ForceSend(i)
	}
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}

	assert.Equal(t, []int{7, 8, 9}, got)
	assert.Equal(t, int64(10), rc.Written())
	assert.Equal(t, int64(7), rc.Dropped())
}

func TestRingChannel_ForceSendReportsDrop(t *testing.T) {
	rc := New[string](1)

	assert.False(t, rc.ForceSend("a"))
	assert.True(t, rc.ForceSend("b"))
	assert.Equal(t, 1, rc.Len())
	assert.Equal(t, "b", <-rc.C())
}

func TestRingChannel_SendAfterCloseIgnored(t *testing.T) {
	rc := New[int](2)
	rc.Close()
	rc.Close()

	assert.NotPanics(t, func() { rc.ForceSend(1) })
	assert.Equal(t, int64(0), rc.Written())
}

func TestRingChannel_ConcurrentProducersNeverBlock(t *testing.T) {
	rc := New[int](4)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rc.ForceSend(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), rc.Written())
	assert.Equal(t, 4, rc.Len())
	assert.Equal(t, int64(796), rc.Dropped())
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
