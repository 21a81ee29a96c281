// Package telemetry exposes Prometheus metrics for the bot.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesSeen      prometheus.Counter
	CommandsDispatch  *prometheus.CounterVec // labels: command, category
	CommandsFailed    *prometheus.CounterVec // labels: command
	GameRounds        *prometheus.CounterVec // labels: game, outcome
	SfxPlaybacks      prometheus.Counter
	SfxPlaybackErrors prometheus.Counter

	// Gauges
	ConnectedGauge    prometheus.Gauge
	SfxIdleChannels   prometheus.Gauge
	KnownCommandCount prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_seen_total", Help: "Chat messages received"})
		CommandsDispatch = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_dispatched_total", Help: "Commands dispatched to a handler"}, []string{"command", "category"})
		CommandsFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_failed_total", Help: "Commands whose handler returned an error"}, []string{"command"})
		GameRounds = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_game_rounds_total", Help: "Game rounds played"}, []string{"game", "outcome"})
		SfxPlaybacks = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_sfx_playbacks_total", Help: "Sound effect playbacks started"})
		SfxPlaybackErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_sfx_playback_errors_total", Help: "Sound effect playbacks that failed"})
		ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_irc_connected", Help: "IRC connection state, 1=connected 0=disconnected"})
		SfxIdleChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_sfx_idle_channels", Help: "Idle playback channels"})
		KnownCommandCount = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_known_commands", Help: "Commands in the dispatch table"})
	})
}

// RecordDispatch bumps the per-command dispatch counter if metrics are up.
func RecordDispatch(command, category string) {
	if CommandsDispatch != nil {
		CommandsDispatch.WithLabelValues(command, category).Inc()
	}
}

// RecordFailure bumps the per-command failure counter if metrics are up.
func RecordFailure(command string) {
	if CommandsFailed != nil {
		CommandsFailed.WithLabelValues(command).Inc()
	}
}

// RecordRound bumps the per-game round counter if metrics are up.
func RecordRound(game, outcome string) {
	if GameRounds != nil {
		GameRounds.WithLabelValues(game, outcome).Inc()
	}
}

// RecordSfxError bumps the playback failure counter if metrics are up.
func RecordSfxError() {
	if SfxPlaybackErrors != nil {
		SfxPlaybackErrors.Inc()
	}
}

// SetSfxIdle sets the idle playback channel gauge.
func SetSfxIdle(n int) {
	if SfxIdleChannels != nil {
		SfxIdleChannels.Set(float64(n))
	}
}

// SetConnected sets the IRC connection gauge.
func SetConnected(up bool) {
	if ConnectedGauge == nil {
		return
	}
	if up {
		ConnectedGauge.Set(1)
	} else {
		ConnectedGauge.Set(0)
	}
}
