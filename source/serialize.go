package source

import (
	"io"
	"sync"
)

// serialReader allows one physical read at a time.
type serialReader struct {
	mu sync.Mutex
	r  io.ReaderAt
}

// Serialize wraps r with a lock shared by all callers, for image
// sources that cannot serve concurrent random reads. Decoding above it
// stays unlocked.
func Serialize(r io.ReaderAt) io.ReaderAt {
	return &serialReader{r: r}
}

func (s *serialReader) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.ReadAt(p, off)
}
