package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrNoConstraints     = errors.New("at least one of audio or video must be requested")
)

type Constraints struct {
	Video bool
	Audio bool
}

// Devices hands out local capture streams, like navigator.mediaDevices.
type Devices interface {
	GetUserMedia(ctx context.Context, c Constraints) (*Stream, error)
}

// opusSilence is a single 20ms Opus frame that decodes to silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const opusFrame = 20 * time.Millisecond

// SyntheticDevices produces a VP8 video track and an Opus audio track
// without touching real hardware. The audio track is fed silence while
// enabled so remote peers see media arrive; the video track stays idle.
type SyntheticDevices struct{}

func (SyntheticDevices) GetUserMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if !c.Video && !c.Audio {
		return nil, ErrNoConstraints
	}
	streamID := uuid.NewString()
	stream := NewStream(streamID)

	if c.Video {
		vt, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video-"+uuid.NewString(), streamID,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: video: %v", ErrDeviceUnavailable, err)
		}
		stream.AddTrack(NewTrack(vt.ID(), KindVideo, vt))
	}

	if c.Audio {
		at, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio-"+uuid.NewString(), streamID,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: audio: %v", ErrDeviceUnavailable, err)
		}
		track := NewTrack(at.ID(), KindAudio, at)
		stream.AddTrack(track)
		go pump(ctx, track, at, opusSilence, opusFrame)
	}

	log.Info().Str("module", "media").Str("stream_id", streamID).Bool("video", c.Video).Bool("audio", c.Audio).Msg("local stream acquired")
	return stream, nil
}

// pump writes one sample per interval while the track is enabled.
// Samples written before the track is bound to a peer connection are discarded by pion.
func pump(ctx context.Context, track *Track, out *webrtc.TrackLocalStaticSample, data []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !track.Enabled() {
				continue
			}
			if err := out.WriteSample(pionmedia.Sample{Data: data, Duration: interval}); err != nil {
				log.Error().Err(err).Str("module", "media").Str("track_id", track.ID()).Msg("write sample")
				return
			}
		}
	}
}
