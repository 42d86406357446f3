package tracking_test

import (
	"testing"

	"github.com/gofrs/flock"
)

func newExternalLock(t *testing.T, path string) func() {
	t.Helper()
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquire external lock: locked=%v err=%v", locked, err)
	}
	return func() { _ = lock.Unlock() }
}
