package app

import (
	"context"
	"sync"

	"github.com/ehdgml1/vehicle-sim/core/broker"
	"github.com/ehdgml1/vehicle-sim/core/model"
)

// fakeBroker records published maps and serves scripted values.
type fakeBroker struct {
	mu        sync.Mutex
	dialErrs  []error
	dials     int
	onDial    func(n int)
	published []*model.SignalMap
	pubErr    error
	onPublish func(n int)
	values    map[string]model.SignalValue
	valueErr  error
	commands  chan broker.Command
	closed    bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{values: map[string]model.SignalValue{}, commands: make(chan broker.Command, 8)}
}

func (f *fakeBroker) Dial(context.Context) error {
	f.mu.Lock()
	f.dials++
	n := f.dials
	var err error
	if len(f.dialErrs) > 0 {
		err = f.dialErrs[0]
		f.dialErrs = f.dialErrs[1:]
	}
	cb := f.onDial
	f.mu.Unlock()
	if cb != nil && err == nil {
		cb(n)
	}
	return err
}

func (f *fakeBroker) setPubErr(err error) {
	f.mu.Lock()
	f.pubErr = err
	f.mu.Unlock()
}

func (f *fakeBroker) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeBroker) Publish(_ context.Context, signals *model.SignalMap) error {
	f.mu.Lock()
	if f.pubErr != nil {
		err := f.pubErr
		f.mu.Unlock()
		return err
	}
	f.published = append(f.published, signals)
	n := len(f.published)
	cb := f.onPublish
	f.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return nil
}

func (f *fakeBroker) CurrentValue(_ context.Context, path string) (model.SignalValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.valueErr != nil {
		return model.SignalValue{}, f.valueErr
	}
	v, ok := f.values[path]
	if !ok {
		return model.SignalValue{}, broker.ErrNoValue
	}
	return v, nil
}

func (f *fakeBroker) Commands() <-chan broker.Command { return f.commands }

func (f *fakeBroker) setValue(path string, v model.SignalValue) {
	f.mu.Lock()
	f.values[path] = v
	f.mu.Unlock()
}

func (f *fakeBroker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

var _ broker.Broker = (*fakeBroker)(nil)
