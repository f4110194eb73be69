// Package media models local and remote media the way a browser exposes it:
// streams of audio/video tracks with an enabled flag, bound to previews.
package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is one audio or video track. Local tracks wrap a pion TrackLocal
// that is added to peer connections; remote tracks wrap a TrackRemote.
type Track struct {
	id      string
	kind    Kind
	enabled atomic.Bool

	local  webrtc.TrackLocal
	remote *webrtc.TrackRemote
}

func NewTrack(id string, kind Kind, local webrtc.TrackLocal) *Track {
	t := &Track{id: id, kind: kind, local: local}
	t.enabled.Store(true)
	return t
}

func NewRemoteTrack(remote *webrtc.TrackRemote) *Track {
	kind := KindAudio
	if remote.Kind() == webrtc.RTPCodecTypeVideo {
		kind = KindVideo
	}
	t := &Track{id: remote.ID(), kind: kind, remote: remote}
	t.enabled.Store(true)
	return t
}

func (t *Track) ID() string                  { return t.id }
func (t *Track) Kind() Kind                  { return t.kind }
func (t *Track) Enabled() bool               { return t.enabled.Load() }
func (t *Track) SetEnabled(v bool)           { t.enabled.Store(v) }
func (t *Track) Local() webrtc.TrackLocal    { return t.local }
func (t *Track) Remote() *webrtc.TrackRemote { return t.remote }

// Stream groups tracks that belong together, like a MediaStream.
type Stream struct {
	id string

	mu     sync.RWMutex
	tracks []*Track
}

func NewStream(id string, tracks ...*Track) *Stream {
	return &Stream{id: id, tracks: tracks}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) AddTrack(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.tracks {
		if have.id == t.id {
			return
		}
	}
	s.tracks = append(s.tracks, t)
}

func (s *Stream) Tracks() []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) VideoTracks() []*Track { return s.byKind(KindVideo) }
func (s *Stream) AudioTracks() []*Track { return s.byKind(KindAudio) }

func (s *Stream) byKind(k Kind) []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Track
	for _, t := range s.tracks {
		if t.kind == k {
			out = append(out, t)
		}
	}
	return out
}
