package sfu

import "github.com/gammazero/workerpool"

// changeDispatcher delivers forwarded-endpoints change events off the
// allocation thread. A single worker keeps delivery ordered while a slow
// listener can never block the update cycle.
type changeDispatcher struct {
	notifier ChangeNotifier
	pool     *workerpool.WorkerPool
}

func newChangeDispatcher(notifier ChangeNotifier) *changeDispatcher {
	return &changeDispatcher{
		notifier: notifier,
		pool:     workerpool.New(1),
	}
}

func (d *changeDispatcher) dispatch(forwarded, entering, conference []string) {
	if d.notifier == nil {
		return
	}

	d.pool.Submit(func() {
		d.notifier.OnForwardedEndpointsChanged(forwarded, entering, conference)
	})
}

// close drains queued events before returning.
func (d *changeDispatcher) close() {
	d.pool.StopWait()
}
