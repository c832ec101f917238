package sfu

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/gammazero/deque"
)

const defaultQualityLogLimit = 256

// QualityRecord is one allocation decision for one source controller.
type QualityRecord struct {
	TimestampMS  int64
	StreamHash   uint32
	SourceHash   uint32
	CurrentIndex int
	TargetIndex  int
	OptimalIndex int
	TargetBPS    uint64
	OptimalBPS   uint64
}

func (r QualityRecord) String() string {
	return fmt.Sprintf("qot,%d,%d,%d,%d,%d,%d,%d,%d",
		r.TimestampMS, r.StreamHash, r.SourceHash,
		r.CurrentIndex, r.TargetIndex, r.OptimalIndex,
		r.TargetBPS, r.OptimalBPS)
}

// QualityLog retains the most recent allocation decisions in a bounded ring
// so they can be inspected without scraping logs.
type QualityLog struct {
	mu      sync.Mutex
	records deque.Deque[QualityRecord]
	limit   int
}

func NewQualityLog(limit int) *QualityLog {
	if limit <= 0 {
		limit = defaultQualityLogLimit
	}

	return &QualityLog{limit: limit}
}

func (l *QualityLog) Append(record QualityRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.records.Len() == l.limit {
		l.records.PopFront()
	}

	l.records.PushBack(record)
}

// Snapshot returns the retained records, oldest first.
func (l *QualityLog) Snapshot() []QualityRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]QualityRecord, l.records.Len())
	for i := 0; i < l.records.Len(); i++ {
		records[i] = l.records.At(i)
	}

	return records
}

func (l *QualityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.records.Len()
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))

	return h.Sum32()
}
