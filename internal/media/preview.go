package media

import "sync"

// Preview is the equivalent of a <video> element: it shows at most one
// stream and can be muted.
type Preview struct {
	name string

	mu       sync.RWMutex
	stream   *Stream
	muted    bool
	onChange func(*Stream)
}

func NewPreview(name string) *Preview {
	return &Preview{name: name}
}

func (p *Preview) Name() string { return p.name }

// Bind replaces the shown stream. Binding nil clears the preview.
func (p *Preview) Bind(s *Stream) {
	p.mu.Lock()
	p.stream = s
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (p *Preview) Clear() { p.Bind(nil) }

func (p *Preview) Stream() *Stream {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stream
}

func (p *Preview) Bound() bool { return p.Stream() != nil }

func (p *Preview) SetMuted(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = v
}

func (p *Preview) Muted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.muted
}

// OnChange registers a callback invoked after every Bind, outside the lock.
func (p *Preview) OnChange(fn func(*Stream)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}
