package controllers

import (
	"sync"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
)

const activityFeedSize = 64

// activityFeed buffers activities for one stream client. push never blocks:
// a client that falls a full buffer behind has its feed closed instead of
// holding up the session.
type activityFeed struct {
	events chan *activitymodel.Activity

	lock     sync.Mutex
	closed   bool
	overflow bool
}

func newActivityFeed(size int) *activityFeed {
	return &activityFeed{
		events: make(chan *activitymodel.Activity, size),
	}
}

func (f *activityFeed) push(a *activitymodel.Activity) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- a:
	default:
		f.overflow = true
		f.closed = true
		close(f.events)
	}
}

func (f *activityFeed) finish() {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *activityFeed) fail(error) {
	f.finish()
}

func (f *activityFeed) overflowed() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.overflow
}
