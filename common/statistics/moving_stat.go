package statistics

import "sync"

// MovingStat keeps the most recent `window` samples of a series in a ring buffer together with their sum.
//
// Memory use is bounded by the window regardless of how many samples are added.
// MovingStat is safe for concurrent use.
type MovingStat struct {
	mu sync.Mutex

	window    int64
	n         int64
	values    []float64
	last      int64
	sum       [2]float64 // include a moving sum(0) and a reset(1) used to ensuring moving sum by adding only.
	active    int
	resetting int
	total     int64
}

// NewMovingStat creates a new MovingStat that retains at most window samples.
//
// A window smaller than 1 is treated as 1.
func NewMovingStat(window int64) *MovingStat {
	if window < 1 {
		window = 1
	}

	return &MovingStat{
		window:    window,
		values:    make([]float64, window),
		active:    0,
		resetting: 1,
	}
}

// Add records a sample, evicting the oldest sample once the window is full.
func (s *MovingStat) Add(val float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Move forward.
	s.last = (s.last + 1) % s.window

	// Add difference to sum.
	s.sum[s.active] += val - s.values[s.last]
	s.sum[s.resetting] += val // Resetting is used to sum from ground above each window interval.
	if s.last == 0 {
		s.active = s.resetting
		s.resetting = (s.resetting + 1) % len(s.sum)
		s.sum[s.resetting] = 0.0
	}

	// Record history value
	s.values[s.last] = val

	// update length
	if s.n < s.window {
		s.n += 1
	}

	s.total += 1
}

func (s *MovingStat) Sum() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sum[s.active]
}

func (s *MovingStat) Window() int64 {
	return s.window
}

// N returns the number of samples currently retained.
func (s *MovingStat) N() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.n
}

// Total returns the number of samples ever added, including evicted ones.
func (s *MovingStat) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.total
}

// Avg returns the average of the retained samples, or 0 if there are none.
func (s *MovingStat) Avg() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.n == 0 {
		return 0
	}

	return s.sum[s.active] / float64(s.n)
}

// Last returns the most recent sample.
func (s *MovingStat) Last() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.values[s.last]
}

// LastN returns the sample added n samples before the most recent one.
func (s *MovingStat) LastN(n int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > s.n {
		n = s.n
	}
	return s.values[(s.last+s.window-n)%s.window]
}

// Values returns the retained samples from oldest to newest.
func (s *MovingStat) Values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]float64, 0, s.n)
	for i := s.n - 1; i >= 0; i-- {
		values = append(values, s.values[(s.last+s.window-i)%s.window])
	}

	return values
}
