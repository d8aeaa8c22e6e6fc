package upload

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// partReader wraps a multipart part body. It reports the first read and signals
// once the body has been consumed, so the next part can be pulled off the connection.
type partReader struct {
	r       io.Reader
	onStart func()

	started  sync.Once
	finished sync.Once
	done     chan struct{}
	n        atomic.Int64
}

func newPartReader(r io.Reader, onStart func()) *partReader {
	return &partReader{
		r:       r,
		onStart: onStart,
		done:    make(chan struct{}),
	}
}

func (p *partReader) Read(b []byte) (int, error) {
	p.started.Do(p.onStart)

	n, err := p.r.Read(b)
	p.n.Add(int64(n))
	if err != nil {
		p.finish()
	}
	// the body ended before the part's closing boundary
	if err == io.ErrUnexpectedEOF {
		err = fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return n, err
}

// Done is closed at the end of the body, on a read error, or when the consumer gives up
func (p *partReader) Done() <-chan struct{} {
	return p.done
}

func (p *partReader) BytesRead() int64 {
	return p.n.Load()
}

func (p *partReader) finish() {
	p.finished.Do(func() {
		close(p.done)
	})
}
