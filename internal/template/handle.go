package template

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Status is the load state of a Handle.
type Status uint8

const (
	StatusPending Status = iota
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

var ErrNotPending = errors.New("template handle already settled")

// Handle is the reference-counted owner of one loaded template.
//
// The owning pool holds one reference from creation; every constructed
// instance holds one more. The template goes back to the loader exactly once,
// when the count reaches zero.
type Handle struct {
	key      string
	source   string
	status   Status
	refs     int
	tpl      *Template
	err      error
	released bool
	loader   Loader
	log      *zap.Logger
}

// NewHandle returns a pending handle carrying the pool's reference.
func NewHandle(key, source string, loader Loader, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{
		key:    key,
		source: source,
		status: StatusPending,
		refs:   1,
		loader: loader,
		log:    log,
	}
}

func (h *Handle) Key() string         { return h.key }
func (h *Handle) Source() string      { return h.source }
func (h *Handle) Status() Status      { return h.status }
func (h *Handle) Refs() int           { return h.refs }
func (h *Handle) Err() error          { return h.err }
func (h *Handle) Released() bool      { return h.released }
func (h *Handle) Template() *Template { return h.tpl }
func (h *Handle) Loaded() bool        { return h.status == StatusLoaded && !h.released }

// Resolve settles the handle with a loaded template.
func (h *Handle) Resolve(tpl *Template) error {
	if h.status != StatusPending {
		return fmt.Errorf("resolve %s: %w", h.key, ErrNotPending)
	}
	if tpl == nil {
		return h.Fail(fmt.Errorf("loader returned no template for %q", h.source))
	}
	h.tpl = tpl
	h.status = StatusLoaded
	return nil
}

// Fail settles the handle as unusable.
func (h *Handle) Fail(err error) error {
	if h.status != StatusPending {
		return fmt.Errorf("fail %s: %w", h.key, ErrNotPending)
	}
	h.err = err
	h.status = StatusFailed
	return nil
}

// Retain adds an instance reference.
func (h *Handle) Retain() {
	h.refs++
}

// Drop removes one reference and releases the template when none remain.
func (h *Handle) Drop() {
	if h.refs <= 0 {
		h.log.Warn("template handle dropped below zero",
			zap.String("key", h.key))
		return
	}
	h.refs--
	if h.refs == 0 {
		h.release()
	}
}

func (h *Handle) release() {
	if h.released {
		h.log.Warn("template handle released twice", zap.String("key", h.key))
		return
	}
	h.released = true
	if h.tpl != nil && h.loader != nil {
		h.loader.Release(h.tpl)
	}
	h.log.Debug("template released",
		zap.String("key", h.key),
		zap.String("status", h.status.String()))
}
