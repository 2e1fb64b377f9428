package pool

// Future reports the outcome of an asynchronous pool creation. It is
// resolved on the game loop; Done may be waited on from anywhere.
type Future struct {
	key  Key
	done chan struct{}
	err  error
}

func newFuture(key Key) *Future {
	return &Future{key: key, done: make(chan struct{})}
}

func resolvedFuture(key Key, err error) *Future {
	f := newFuture(key)
	f.resolve(err)
	return f
}

func (f *Future) resolve(err error) {
	select {
	case <-f.done:
		return
	default:
	}
	f.err = err
	close(f.done)
}

func (f *Future) Key() Key              { return f.key }
func (f *Future) Done() <-chan struct{} { return f.done }

// Resolved reports whether the load has settled.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the load error once resolved; nil while pending.
func (f *Future) Err() error {
	if !f.Resolved() {
		return nil
	}
	return f.err
}

// OK reports a successful, settled load.
func (f *Future) OK() bool { return f.Resolved() && f.err == nil }
