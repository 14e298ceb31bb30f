package logger

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const defaultSampleEvery = 50

// debugSampler lets one in every N high-volume debug events through.
type debugSampler struct {
	mu sync.RWMutex
	s  *rate.Sometimes
}

func (d *debugSampler) setEvery(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n <= 1 {
		d.s = nil
		return
	}
	d.s = &rate.Sometimes{Every: n}
}

func (d *debugSampler) allow() bool {
	d.mu.RLock()
	s := d.s
	d.mu.RUnlock()
	if s == nil {
		return true
	}
	ok := false
	s.Do(func() { ok = true })
	return ok
}

// parseSampleEvery reads "N" or "num/den" and returns the sampling period.
// Zero or negative values disable sampling; garbage falls back to the default.
func parseSampleEvery(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultSampleEvery
	}
	num, den := 1, 0
	var err error
	if a, b, found := strings.Cut(raw, "/"); found {
		if num, err = strconv.Atoi(strings.TrimSpace(a)); err != nil {
			return defaultSampleEvery
		}
		if den, err = strconv.Atoi(strings.TrimSpace(b)); err != nil {
			return defaultSampleEvery
		}
	} else if den, err = strconv.Atoi(raw); err != nil {
		return defaultSampleEvery
	}
	if num <= 0 || den <= 0 || num >= den {
		return 1
	}
	return den / num
}
