package taskstate

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	lockTimeout     = 30 * time.Second // Maximum time to wait for lock
	lockRetryDelay  = 50 * time.Millisecond
	lockRetryJitter = 50 * time.Millisecond
	staleLockAge    = 2 * lockTimeout // Locks older than this are reclaimed
)

// getJitteredDelay returns the base delay plus some random jitter to prevent thundering herd
func getJitteredDelay() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(lockRetryJitter)))
	return lockRetryDelay + jitter
}

// fileLock represents a file-based lock
type fileLock struct {
	lockPath string
	lockFile *os.File
}

// acquireLock attempts to acquire a file lock with timeout and PID tracking
func acquireLock(filePath string) (*fileLock, error) {
	lockPath := filePath + ".lock"
	startTime := time.Now()

	for {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			// Successfully acquired lock - write PID for debugging
			lockFile.WriteString(fmt.Sprintf("%d\n", os.Getpid()))

			return &fileLock{
				lockPath: lockPath,
				lockFile: lockFile,
			}, nil
		}

		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "failed to create lock file")
		}

		// A crashed process may have left the lock behind
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(lockPath)
			continue
		}

		if time.Since(startTime) > lockTimeout {
			return nil, errors.Errorf("timeout waiting for lock on %s", filePath)
		}

		time.Sleep(getJitteredDelay())
	}
}

// release removes the lock file
func (l *fileLock) release() {
	l.lockFile.Close()
	os.Remove(l.lockPath)
}
