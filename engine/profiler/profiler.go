// Package profiler aggregates frame rate, kernel dispatch and memory statistics and reports them through the
// engine logger once per interval.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
)

// Stats is one interval's worth of measurements.
type Stats struct {
	FPS             float64
	DispatchesPerS  float64
	Frames          int
	Dispatches      int
	HeapMB          float64
	AllocRateMBPerS float64
	GCCount         uint32
	LastPauseUs     uint64
	MaxPauseUs      uint64
	SysMB           float64
}

// Profiler tracks frame rate, dispatch rate and memory statistics. It is not safe for concurrent use; tick it
// from the render goroutine only.
type Profiler struct {
	frameCount     int
	dispatchCount  int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats

	now func() time.Time
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick records one render frame and whether a kernel was dispatched in it. When the update interval has elapsed
// the interval's statistics are computed and logged at Info.
//
// Parameters:
//   - dispatched: true if the frame dispatched a kernel
//
// Returns:
//   - Stats: the interval statistics when reported
//   - bool: true if stats were produced this tick
func (p *Profiler) Tick(dispatched bool) (Stats, bool) {
	p.frameCount++
	if dispatched {
		p.dispatchCount++
	}
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Stats{}, false
	}

	s := Stats{
		Frames:         p.frameCount,
		Dispatches:     p.dispatchCount,
		FPS:            float64(p.frameCount) / elapsed.Seconds(),
		DispatchesPerS: float64(p.dispatchCount) / elapsed.Seconds(),
	}

	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	s.AllocRateMBPerS = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	s.GCCount = p.memStats.NumGC
	if s.GCCount > 0 {
		// PauseNs is a ring of the last 256 pauses.
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if s.GCCount-startIdx > 256 {
			startIdx = s.GCCount - 256
		}
		for i := startIdx; i < s.GCCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
				s.MaxPauseUs = pause
			}
		}
	}

	common.Logger().Info("profiler",
		"fps", s.FPS,
		"dispatches_per_s", s.DispatchesPerS,
		"heap_mb", s.HeapMB,
		"alloc_rate_mb_s", s.AllocRateMBPerS,
		"gc", s.GCCount,
		"gc_last_pause_us", s.LastPauseUs,
		"gc_max_pause_us", s.MaxPauseUs,
		"sys_mb", s.SysMB,
	)

	p.frameCount = 0
	p.dispatchCount = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.last = s
	return s, true
}

// Last returns the most recently reported statistics.
//
// Returns:
//   - Stats: the last interval's stats, zero before the first report
func (p *Profiler) Last() Stats {
	return p.last
}
