package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// MalgoDevice captures from the default input through miniaudio.
type MalgoDevice struct {
	log *logger.Logger

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

// NewMalgoDevice creates an unopened device.
func NewMalgoDevice(log *logger.Logger) *MalgoDevice {
	return &MalgoDevice{log: log}
}

// Open initialises the default capture device as signed 16-bit PCM and
// starts it.
func (d *MalgoDevice) Open(sampleRate, channels int, onData func(pcm []int16)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev != nil {
		return errors.New("malgo: device already open")
	}

	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		d.log.Debug("malgo: %s", strings.TrimSpace(msg))
	})
	if err != nil {
		return fmt.Errorf("malgo context: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = uint32(sampleRate)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(channels)
	devCfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			n := len(raw) / 2
			pcm := make([]int16, n)
			for i := 0; i < n; i++ {
				pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
			}
			onData(pcm)
		},
	}

	dev, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		_ = mCtx.Uninit()
		mCtx.Free()
		return fmt.Errorf("malgo device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mCtx.Uninit()
		mCtx.Free()
		return fmt.Errorf("malgo start: %w", err)
	}

	d.ctx, d.dev = mCtx, dev
	d.log.Debug("malgo: capture started (rate=%d, channels=%d)", sampleRate, channels)
	return nil
}

// Stop halts the data callback.
func (d *MalgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	return d.dev.Stop()
}

// Close releases the device and its context.
func (d *MalgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	d.dev.Uninit()
	err := d.ctx.Uninit()
	d.ctx.Free()
	d.ctx, d.dev = nil, nil
	return err
}
