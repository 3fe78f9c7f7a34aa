package source

import (
	"fmt"
	"sync"
	"time"
)

// Opener hands out shared sources by path. Workers re-read bundles from
// the same files the dispatcher scans, so one handle per path is enough.
type Opener struct {
	follow bool
	poll   time.Duration

	mu      sync.Mutex
	sources map[string]Source
}

// NewOpener returns an Opener. When follow is set, sources are opened as
// live tails.
func NewOpener(follow bool, poll time.Duration) *Opener {
	return &Opener{
		follow:  follow,
		poll:    poll,
		sources: make(map[string]Source),
	}
}

// Open returns the cached source for path, opening it on first use.
func (o *Opener) Open(path string) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.sources[path]; ok {
		return s, nil
	}

	var (
		s   Source
		err error
	)
	if o.follow {
		s, err = OpenTail(path, o.poll)
	} else {
		s, err = OpenFile(path)
	}
	if err != nil {
		return nil, err
	}
	o.sources[path] = s
	return s, nil
}

// Add registers an already open source under its name.
func (o *Opener) Add(s Source) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources[s.Name()] = s
}

// Close closes every cached source.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var first error
	for path, s := range o.sources {
		if err := s.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", path, err)
		}
		delete(o.sources, path)
	}
	return first
}
