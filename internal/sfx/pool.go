package sfx

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/telemetry"
)

// Playback is a handle to one in-flight effect. Done is resolved with the
// player's error once the effect has finished sounding.
type Playback struct {
	ID      uuid.UUID
	Channel int
	Done    <-chan error
}

// Pool plays effects on a fixed number of channels. When every channel is
// busy, Play waits for one to come free instead of cutting a running effect
// short.
type Pool struct {
	player        Player
	defaultVolume int

	idle chan int

	mu      sync.Mutex
	volumes []int
}

// NewPool creates a pool with the given number of channels, all idle at the
// default volume.
func NewPool(player Player, channels, defaultVolume int) *Pool {
	if channels < 1 {
		channels = 1
	}
	p := &Pool{
		player:        player,
		defaultVolume: defaultVolume,
		idle:          make(chan int, channels),
		volumes:       make([]int, channels),
	}
	for i := 0; i < channels; i++ {
		p.idle <- i
		p.volumes[i] = defaultVolume
	}
	telemetry.SetSfxIdle(channels)
	return p
}

// Channels returns the pool size.
func (p *Pool) Channels() int { return cap(p.idle) }

// IdleChannels returns how many channels are currently free.
func (p *Pool) IdleChannels() int { return len(p.idle) }

// ChannelVolume returns a channel's current volume.
func (p *Pool) ChannelVolume(channel int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volumes[channel]
}

func (p *Pool) setVolume(channel, volume int) {
	p.mu.Lock()
	p.volumes[channel] = volume
	p.mu.Unlock()
}

// Play starts an effect on the first idle channel, waiting for one if all
// are busy. It returns once the channel is allocated; the handle's Done
// channel resolves when playback completes. Completion resets the channel
// volume to the default before the channel rejoins the idle set.
func (p *Pool) Play(ctx context.Context, event *model.SfxEvent, filePath string) (*Playback, error) {
	var channel int
	select {
	case channel = <-p.idle:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	telemetry.SetSfxIdle(len(p.idle))

	volume := event.Volume
	if volume <= 0 {
		volume = p.defaultVolume
	}
	p.setVolume(channel, volume)

	id := uuid.New()
	done := make(chan error, 1)

	log.Debug().Str("request", id.String()).Str("event", event.Name).
		Int("channel", channel).Int("volume", volume).Msg("sfx playback started")

	// The caller's ctx gates only the wait for a channel; once the effect is
	// sounding it must outlive the dispatch that started it.
	playCtx := context.WithoutCancel(ctx)
	go func() {
		err := p.player.Play(playCtx, filePath, event.OutputDevice, volume)
		if err != nil {
			log.Warn().Err(err).Str("request", id.String()).Str("event", event.Name).Msg("sfx playback failed")
			telemetry.RecordSfxError()
		}
		p.setVolume(channel, p.defaultVolume)
		p.idle <- channel
		telemetry.SetSfxIdle(len(p.idle))
		done <- err
	}()

	return &Playback{ID: id, Channel: channel, Done: done}, nil
}
