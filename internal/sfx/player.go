// Package sfx implements the sound-effect catalog and the bounded playback
// channel pool.
package sfx

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Player is the platform audio collaborator. Play blocks until the effect
// has finished sounding.
type Player interface {
	Devices() ([]string, error)
	Play(ctx context.Context, filePath, device string, volume int) error
}

// NopPlayer discards playback requests. Used for headless runs.
type NopPlayer struct{}

// Devices returns no devices.
func (NopPlayer) Devices() ([]string, error) { return nil, nil }

// Play logs the request and returns immediately.
func (NopPlayer) Play(_ context.Context, filePath, device string, volume int) error {
	log.Debug().Str("file", filePath).Str("device", device).Int("volume", volume).Msg("playback skipped")
	return nil
}
