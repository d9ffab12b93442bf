package strategy

import (
	"sync"
	"time"
)

// sampleRetention is how far back the per-mint sample history extends.
// Samples older than this are discarded on every Record call.
const sampleRetention = 10 * time.Minute

// ReasonInsufficientIntervals is the report reason when fewer than
// MinQualifyingWindows lookback windows show momentum.
const ReasonInsufficientIntervals = "insufficient_momentum_intervals"

// MinQualifyingWindows is how many lookback windows must simultaneously show
// momentum before the aggregate is considered strong. A single-window spike
// is noise.
const MinQualifyingWindows = 2

// Sample records a single price observation at a point in time.
type Sample struct {
	Price float64
	Time  time.Time
}

// WindowConfig is one momentum lookback window and its minimum-gain
// threshold in percent.
type WindowConfig struct {
	Window  time.Duration
	MinGain float64
}

// DefaultWindows returns the five standard lookback windows with the given
// thresholds, ordered shortest first.
func DefaultWindows(gain15s, gain30s, gain1m, gain2m, gain5m float64) []WindowConfig {
	return []WindowConfig{
		{Window: 15 * time.Second, MinGain: gain15s},
		{Window: 30 * time.Second, MinGain: gain30s},
		{Window: time.Minute, MinGain: gain1m},
		{Window: 2 * time.Minute, MinGain: gain2m},
		{Window: 5 * time.Minute, MinGain: gain5m},
	}
}

// WindowReport is the momentum result for one lookback window.
type WindowReport struct {
	Window      time.Duration
	GainPercent float64
	Samples     int
	HasData     bool // at least two samples fell inside the window
	HasMomentum bool
}

// Report is the aggregate momentum picture for a mint.
type Report struct {
	Mint       string
	Windows    []WindowReport
	Qualifying int
	Strong     bool
	Reason     string // set when Strong is false
}

// MomentumAnalyzer maintains a sliding window of price samples per mint and
// evaluates percentage gains over several fixed lookbacks. Entry-eligible
// ("strong") momentum requires at least MinQualifyingWindows windows above
// their thresholds at once.
type MomentumAnalyzer struct {
	mu      sync.RWMutex
	history map[string][]Sample
	windows []WindowConfig
}

// NewMomentumAnalyzer creates an analyzer with the given lookback windows.
func NewMomentumAnalyzer(windows []WindowConfig) *MomentumAnalyzer {
	return &MomentumAnalyzer{
		history: make(map[string][]Sample),
		windows: windows,
	}
}

// Record appends a price observation for the mint and trims samples that
// have aged out of the retention window.
func (m *MomentumAnalyzer) Record(mint string, price float64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history[mint] = append(m.history[mint], Sample{Price: price, Time: ts})
	m.trim(mint, ts)
}

// Analyze evaluates all lookback windows for the mint as of now.
func (m *MomentumAnalyzer) Analyze(mint string, now time.Time) Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	samples := m.history[mint]
	report := Report{
		Mint:    mint,
		Windows: make([]WindowReport, 0, len(m.windows)),
	}

	for _, wc := range m.windows {
		wr := windowGain(samples, wc, now)
		if wr.HasMomentum {
			report.Qualifying++
		}
		report.Windows = append(report.Windows, wr)
	}

	if report.Qualifying >= MinQualifyingWindows {
		report.Strong = true
	} else {
		report.Reason = ReasonInsufficientIntervals
	}
	return report
}

// Clear purges the mint's sample history. Called on entry rejection and on
// position close to bound memory.
func (m *MomentumAnalyzer) Clear(mint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, mint)
}

// SampleCount returns how many samples are currently held for the mint.
func (m *MomentumAnalyzer) SampleCount(mint string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history[mint])
}

// windowGain computes the percentage gain from the earliest in-window sample
// to the latest sample. Fewer than two in-window samples reports no data.
func windowGain(samples []Sample, wc WindowConfig, now time.Time) WindowReport {
	wr := WindowReport{Window: wc.Window}
	cutoff := now.Add(-wc.Window)

	// Samples are appended in time order; find the first inside the window.
	first := -1
	for i := range samples {
		if !samples[i].Time.Before(cutoff) {
			first = i
			break
		}
	}
	if first < 0 {
		return wr
	}

	inWindow := samples[first:]
	wr.Samples = len(inWindow)
	if len(inWindow) < 2 {
		return wr
	}

	earliest := inWindow[0].Price
	latest := inWindow[len(inWindow)-1].Price
	if earliest <= 0 {
		return wr
	}

	wr.HasData = true
	wr.GainPercent = (latest - earliest) / earliest * 100
	wr.HasMomentum = wc.MinGain > 0 && wr.GainPercent >= wc.MinGain
	return wr
}

// trim removes samples older than the retention window. Caller holds m.mu.
func (m *MomentumAnalyzer) trim(mint string, now time.Time) {
	cutoff := now.Add(-sampleRetention)
	samples := m.history[mint]

	i := 0
	for i < len(samples) && samples[i].Time.Before(cutoff) {
		i++
	}
	if i > 0 {
		m.history[mint] = samples[i:]
	}
}
