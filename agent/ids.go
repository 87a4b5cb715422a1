package agent

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// idSource generates thread, run, and message identifiers from a monotonic
// timestamp plus a per-process counter, so ids sort chronologically even
// when generated within the same millisecond. Embeds a random suffix to
// stay globally unique across processes.
type idSource struct {
	counter atomic.Uint64
}

func newIDSource() *idSource { return &idSource{} }

func (s *idSource) next(prefix string) string {
	n := s.counter.Add(1)
	return fmt.Sprintf("%s_%d_%d_%s", prefix, time.Now().UnixNano(), n, uuid.NewString()[:8])
}

func (s *idSource) threadID() string  { return s.next("thread") }
func (s *idSource) runID() string     { return s.next("run") }
func (s *idSource) messageID() string { return s.next("msg") }
