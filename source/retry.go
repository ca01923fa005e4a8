package source

import (
	"errors"
	"io"
	"time"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
)

// retryReader retries failed physical reads a bounded number of times.
type retryReader struct {
	r        io.ReaderAt
	attempts int
	delay    time.Duration
}

// WithRetry wraps r so that a ReadAt failing with anything other than
// io.EOF is retried up to retries more times, sleeping delay before the
// first retry and doubling it after each one. Short reads at the end of
// the image are not retried.
func WithRetry(r io.ReaderAt, retries int, delay time.Duration) io.ReaderAt {
	if retries <= 0 {
		return r
	}
	return &retryReader{r: r, attempts: retries + 1, delay: delay}
}

func (r *retryReader) ReadAt(p []byte, off int64) (n int, err error) {
	delay := r.delay
	for attempt := 1; ; attempt++ {
		n, err = r.r.ReadAt(p, off)
		if err == nil || errors.Is(err, io.EOF) || attempt >= r.attempts {
			return n, err
		}
		logger.Warn("read of %d bytes at %d failed (attempt %d/%d): %v", len(p), off, attempt, r.attempts, err)
		if delay > 0 {
			time.Sleep(delay)
			delay *= 2
		}
	}
}
