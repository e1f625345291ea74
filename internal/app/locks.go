package service

import (
	"hash/fnv"
	"sync"
)

const defaultLockStripes = 256

// subjectLocks serializes read-modify-write work per subject. Subjects that
// hash to the same stripe share a mutex.
type subjectLocks struct {
	stripes []sync.Mutex
}

func newSubjectLocks(n int) *subjectLocks {
	if n < 1 {
		n = defaultLockStripes
	}
	return &subjectLocks{stripes: make([]sync.Mutex, n)}
}

func (l *subjectLocks) lock(subjectID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subjectID))
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m.Unlock
}
