package graph

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	defaultMinDecibels = -100.0
	defaultMaxDecibels = -30.0
	defaultSmoothing   = 0.8
)

// Analyser is a non-destructive analysis tap. It keeps the most recent
// fftSize samples of whatever passes through it and reports them as byte
// spectra or byte waveforms, scaled the way browsers scale theirs.
type Analyser struct {
	mu        sync.Mutex
	fftSize   int
	ring      []float32
	pos       int
	smoothing float64
	minDB     float64
	maxDB     float64

	fft    *fourier.FFT
	window []float64
	seq    []float64
	coeff  []complex128
	smooth []float64
}

// AnalyserOption configures an Analyser.
type AnalyserOption func(*Analyser)

// WithSmoothing sets the spectral smoothing constant in [0, 1).
func WithSmoothing(tau float64) AnalyserOption {
	return func(a *Analyser) {
		if tau >= 0 && tau < 1 {
			a.smoothing = tau
		}
	}
}

// WithDecibelRange sets the dB range mapped onto 0..255.
func WithDecibelRange(minDB, maxDB float64) AnalyserOption {
	return func(a *Analyser) {
		if minDB < maxDB {
			a.minDB, a.maxDB = minDB, maxDB
		}
	}
}

// NewAnalyser creates a tap with a window of fftSize samples, exposing
// fftSize/2 frequency bins.
func NewAnalyser(fftSize int, opts ...AnalyserOption) *Analyser {
	a := &Analyser{
		fftSize:   fftSize,
		ring:      make([]float32, fftSize),
		smoothing: defaultSmoothing,
		minDB:     defaultMinDecibels,
		maxDB:     defaultMaxDecibels,
		fft:       fourier.NewFFT(fftSize),
		window:    blackman(fftSize),
		seq:       make([]float64, fftSize),
		coeff:     make([]complex128, fftSize/2+1),
		smooth:    make([]float64, fftSize/2),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// FFTSize returns the analysis window length.
func (a *Analyser) FFTSize() int { return a.fftSize }

// FrequencyBinCount returns FFTSize/2.
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// Write pushes mono samples into the analysis window.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.fftSize
	}
}

// WritePCM16 pushes integer samples, as delivered by capture devices.
func (a *Analyser) WritePCM16(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		if s < 0 {
			a.ring[a.pos] = float32(s) / 32768
		} else {
			a.ring[a.pos] = float32(s) / 32767
		}
		a.pos = (a.pos + 1) % a.fftSize
	}
}

// ByteTimeDomainData copies the current waveform into dst as unsigned
// bytes centred on 128. It returns the number of bytes written.
func (a *Analyser) ByteTimeDomainData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := min(len(dst), a.fftSize)
	for i := 0; i < n; i++ {
		s := a.ring[(a.pos+i)%a.fftSize]
		dst[i] = clampByte(128 * (1 + float64(s)))
	}
	return n
}

// ByteFrequencyData computes a windowed, smoothed magnitude spectrum and
// copies it into dst as bytes spanning the decibel range. It returns the
// number of bins written.
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < a.fftSize; i++ {
		a.seq[i] = float64(a.ring[(a.pos+i)%a.fftSize]) * a.window[i]
	}
	a.coeff = a.fft.Coefficients(a.coeff, a.seq)

	bins := a.fftSize / 2
	scale := 255 / (a.maxDB - a.minDB)
	n := min(len(dst), bins)
	for k := 0; k < bins; k++ {
		c := a.coeff[k]
		mag := math.Hypot(real(c), imag(c)) / float64(a.fftSize)
		a.smooth[k] = a.smoothing*a.smooth[k] + (1-a.smoothing)*mag
		if k >= n {
			continue
		}
		db := math.Inf(-1)
		if a.smooth[k] > 0 {
			db = 20 * math.Log10(a.smooth[k])
		}
		dst[k] = clampByte(scale * (db - a.minDB))
	}
	return n
}

// Reset zeroes the analysis window and the smoothing state.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smooth)
	a.pos = 0
}

func blackman(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

func clampByte(v float64) byte {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}
