package geofence

import (
	"sync"
	"testing"
)

func TestDeviceLocksSerialize(t *testing.T) {
	locks := newDeviceLocks()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire("device-abc")
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected at most 1 concurrent holder, saw %d", maxActive)
	}
	if locks.count() != 0 {
		t.Errorf("expected all entries released, %d remain", locks.count())
	}
}

func TestDeviceLocksIndependentDevices(t *testing.T) {
	locks := newDeviceLocks()

	releaseA := locks.acquire("device-a")

	done := make(chan struct{})
	go func() {
		releaseB := locks.acquire("device-b")
		releaseB()
		close(done)
	}()

	<-done
	releaseA()

	if locks.count() != 0 {
		t.Errorf("expected all entries released, %d remain", locks.count())
	}
}
