package workpool

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// PanicError is returned by a future whose task panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("workpool: task panicked: %v", e.Value)
}

// Future holds the result of a submitted task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(v T, err error) {
	f.value = v
	f.err = err
	close(f.done)
}

// Done returns a channel which is closed when the task has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task has finished and returns its result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Help waits for the task like Wait, but if s is a worker it keeps
// running queued tasks in the meantime. Tasks waiting on their own
// children should use Help, otherwise a pool with few workers can
// deadlock.
func (f *Future[T]) Help(s Spawner) (T, error) {
	w, ok := s.(*Worker)
	if !ok {
		return f.Wait()
	}
	for {
		select {
		case <-f.done:
			return f.value, f.err
		default:
		}
		if t := w.next(); t != nil {
			w.execute(t)
			continue
		}
		runtime.Gosched()
	}
}

// Submit schedules fn on s and returns its future. fn receives the
// worker it runs on, so it can submit child tasks locally.
func Submit[T any](s Spawner, fn func(Spawner) (T, error)) *Future[T] {
	f := newFuture[T]()
	s.spawn(&task{
		run: func(w *Worker) {
			v, err := call(w, fn)
			f.complete(v, err)
		},
		fail: func(err error) {
			var zero T
			f.complete(zero, err)
		},
	})
	return f
}

// Go schedules fn which returns only an error.
func Go(s Spawner, fn func(Spawner) error) *Future[struct{}] {
	return Submit(s, func(sp Spawner) (struct{}, error) {
		return struct{}{}, fn(sp)
	})
}

func call[T any](w *Worker, fn func(Spawner) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("task panicked on worker %d: %v", w.index, r)
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(w)
}

// WaitAll waits for all the futures and returns their values. The
// first error in submission order is returned after every future has
// finished.
func WaitAll[T any](fs []*Future[T]) ([]T, error) {
	return HelpAll[T](nil, fs)
}

// HelpAll is WaitAll helping on s while waiting, see Help.
func HelpAll[T any](s Spawner, fs []*Future[T]) ([]T, error) {
	res := make([]T, len(fs))
	var first error
	for i, f := range fs {
		v, err := f.Help(s)
		res[i] = v
		if err != nil && first == nil {
			first = err
		}
	}
	return res, first
}
