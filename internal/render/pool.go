package render

import (
	"log/slog"
	"sync"
)

// Pool tracks the textures uploaded for each queue slot so they can be
// released in lockstep with slot recycling. Every slot owns at most one
// photo texture and one backdrop texture; binding a new texture to an
// occupied position releases the old one immediately, so handles can never
// accumulate.
type Pool struct {
	mu    sync.Mutex
	slots map[int]*slotTextures
}

type slotTextures struct {
	photo    Texture
	backdrop Texture
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{slots: make(map[int]*slotTextures)}
}

// BindPhoto associates the photo texture with a slot.
func (p *Pool) BindPhoto(slot int, t Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.slot(slot)
	if s.photo != nil {
		s.photo.Release()
	}
	s.photo = t
}

// BindBackdrop associates the blurred backdrop texture with a slot.
func (p *Pool) BindBackdrop(slot int, t Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.slot(slot)
	if s.backdrop != nil {
		s.backdrop.Release()
	}
	s.backdrop = t
}

// Backdrop returns the slot's backdrop texture, or nil if none is bound.
func (p *Pool) Backdrop(slot int) Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.slots[slot]; ok {
		return s.backdrop
	}
	return nil
}

// ReleaseSlot frees every texture bound to the slot. The queue's recycle
// hook calls this synchronously, before the slot becomes reusable.
func (p *Pool) ReleaseSlot(slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[slot]
	if !ok {
		return
	}
	if s.photo != nil {
		s.photo.Release()
	}
	if s.backdrop != nil {
		s.backdrop.Release()
	}
	delete(p.slots, slot)
	slog.Debug("slot textures released", "slot", slot)
}

// ReleaseAll frees everything. Called on shutdown before the backend
// closes, so no handle outlives its surface.
func (p *Pool) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for slot, s := range p.slots {
		if s.photo != nil {
			s.photo.Release()
		}
		if s.backdrop != nil {
			s.backdrop.Release()
		}
		delete(p.slots, slot)
	}
}

// Held returns how many slots currently hold textures.
func (p *Pool) Held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

func (p *Pool) slot(slot int) *slotTextures {
	s, ok := p.slots[slot]
	if !ok {
		s = &slotTextures{}
		p.slots[slot] = s
	}
	return s
}
