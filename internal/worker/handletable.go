package worker

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gpurelay/gpurelay/internal/common/apperrors"
	"github.com/gpurelay/gpurelay/internal/device"
	"github.com/gpurelay/gpurelay/internal/wire"
)

var errInvalidHandle = apperrors.New("worker: unknown handle").SetStatusCode(int(wire.StatusInvalidHandle))

type resourceKind uint8

const (
	kindMemory resourceKind = iota
	kindStream
	kindEvent
	kindModule
	kindFunction
)

type tableEntry struct {
	kind resourceKind
	res  any
}

// handleTable maps the small-integer handles a connection hands out to the
// local resources behind them. Each connection owns exactly one table, so
// handles minted on one session can never resolve on another. Handles are
// monotonic and never reused within a connection, which keeps a freed
// handle's numeric value from aliasing a later allocation.
type handleTable struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]tableEntry
	order   []uint64 // insertion order, for reverse teardown
}

func newHandleTable() *handleTable {
	return &handleTable{
		next:    1,
		entries: make(map[uint64]tableEntry),
	}
}

func (t *handleTable) mint(kind resourceKind, res any) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.entries[h] = tableEntry{kind: kind, res: res}
	t.order = append(t.order, h)
	return h
}

func (t *handleTable) lookup(h uint64, kind resourceKind) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok || e.kind != kind {
		return nil, errInvalidHandle
	}
	return e.res, nil
}

func (t *handleTable) remove(h uint64, kind resourceKind) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok || e.kind != kind {
		return nil, errInvalidHandle
	}
	delete(t.entries, h)
	return e.res, nil
}

func (t *handleTable) memory(h uint64) (device.Memory, error) {
	res, err := t.lookup(h, kindMemory)
	if err != nil {
		return nil, err
	}
	return res.(device.Memory), nil
}

func (t *handleTable) stream(h uint64) (device.Stream, error) {
	res, err := t.lookup(h, kindStream)
	if err != nil {
		return nil, err
	}
	return res.(device.Stream), nil
}

func (t *handleTable) module(h uint64) (device.Module, error) {
	res, err := t.lookup(h, kindModule)
	if err != nil {
		return nil, err
	}
	return res.(device.Module), nil
}

func (t *handleTable) function(h uint64) (device.Function, error) {
	res, err := t.lookup(h, kindFunction)
	if err != nil {
		return nil, err
	}
	return res.(device.Function), nil
}

// teardown releases every resource the connection still holds, newest
// first. Called exactly once when the owning connection closes.
func (t *handleTable) teardown() {
	t.mu.Lock()
	order := t.order
	entries := t.entries
	t.order = nil
	t.entries = make(map[uint64]tableEntry)
	t.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		e, ok := entries[order[i]]
		if !ok {
			continue
		}
		var err error
		switch e.kind {
		case kindMemory:
			err = e.res.(device.Memory).Free()
		case kindStream:
			err = e.res.(device.Stream).Destroy()
		case kindEvent:
			err = e.res.(device.Event).Destroy()
		case kindModule:
			err = e.res.(device.Module).Unload()
		case kindFunction:
			// functions are views into their module, nothing to release
		}
		if err != nil {
			log.Debug().Err(err).Uint64("handle", order[i]).Msg("resource release failed during teardown")
		}
	}
}
