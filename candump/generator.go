package candump

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/brutella/can"

	"github.com/ehdgml1/vehicle-sim/core/simulator"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
)

const (
	defaultRateHz = 20.0
	minRateHz     = 1.0
	maxRateHz     = 100.0
)

var (
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrNoMessages      = errors.New("catalog has no encodable messages")
)

// FrameWriter receives generated frames in timestamp order.
type FrameWriter interface {
	WriteFrame(ts float64, f can.Frame) error
}

// Options controls a generation run.
type Options struct {
	// Duration of the log in seconds.
	Duration float64
	// Seed makes noise reproducible. Zero picks a random seed.
	Seed uint64
	Log  logger.Logger
}

type stamped struct {
	ts    float64
	order int
	frame can.Frame
}

// Generate samples every message of cat at its own rate over the run and
// writes the frames to w sorted by timestamp. It returns the number of
// frames written.
func Generate(ctx context.Context, cat *Catalog, w FrameWriter, opts Options) (int, error) {
	if !(opts.Duration > 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, opts.Duration)
	}
	if cat == nil || len(cat.Messages) == 0 {
		return 0, ErrNoMessages
	}
	log := opts.Log
	if log == nil {
		log = logger.New("candump")
	}
	for _, s := range cat.Skipped {
		log.Warnf("skipping message %s", s)
	}

	rng := simulator.NewNoise(opts.Seed)
	var frames []stamped
	for i, msg := range cat.Messages {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		waves := make([]Waveform, len(msg.Signals))
		for j, s := range msg.Signals {
			waves[j] = NewWaveform(s, opts.Duration, rng)
		}
		rate := msg.RateHz()
		step := 1 / rate
		n := 0
		for k := 0; float64(k)*step <= opts.Duration+1e-9; k++ {
			t := float64(k) * step
			values := make(map[string]float64, len(waves))
			for j, s := range msg.Signals {
				values[s.Name] = waves[j].At(t)
			}
			data := msg.Encode(values)
			frames = append(frames, stamped{
				ts:    BaseTimestamp + t,
				order: i,
				frame: NewFrame(msg.ID, msg.Extended, data[:msg.Length]),
			})
			n++
		}
		log.Debugw("message sampled", map[string]any{
			"message": msg.Name,
			"id":      fmt.Sprintf("0x%X", msg.ID),
			"rate_hz": rate,
			"frames":  n,
		})
	}

	sort.SliceStable(frames, func(a, b int) bool {
		if frames[a].ts != frames[b].ts {
			return frames[a].ts < frames[b].ts
		}
		return frames[a].order < frames[b].order
	})
	for i, f := range frames {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return i, err
			}
		}
		if err := w.WriteFrame(f.ts, f.frame); err != nil {
			return i, fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	log.Infof("generated %d frames from %d messages over %.1fs", len(frames), len(cat.Messages), opts.Duration)
	return len(frames), nil
}

// Expected returns the number of frames Generate writes for one message.
func (m *Message) Expected(duration float64) int {
	if duration <= 0 {
		return 0
	}
	return int(math.Floor(duration*m.RateHz()+1e-9)) + 1
}
