package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProgressPoint is one sample of decode progress
type ProgressPoint struct {
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Entities  int64     `json:"entities" msgpack:"entities"`
	Rate      float64   `json:"rate" msgpack:"rate"` // entities per second since the previous sample
}

// progressBuffer is a fixed-size ring of samples
type progressBuffer struct {
	mu       sync.RWMutex
	points   []ProgressPoint
	size     int
	writePos int
	count    int
}

func newProgressBuffer(size int) *progressBuffer {
	if size < 1 {
		size = 1
	}
	return &progressBuffer{points: make([]ProgressPoint, size), size: size}
}

func (b *progressBuffer) add(point ProgressPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.points[b.writePos] = point
	b.writePos = (b.writePos + 1) % b.size
	if b.count < b.size {
		b.count++
	}
}

// recent returns samples newer than since, oldest first
func (b *progressBuffer) recent(since time.Time) []ProgressPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []ProgressPoint
	for i := 0; i < b.count; i++ {
		point := b.points[(b.writePos-b.count+i+b.size)%b.size]
		if point.Timestamp.After(since) {
			result = append(result, point)
		}
	}
	return result
}

// Progress samples the entity counter at a fixed interval and logs the decode
// rate, so long runs over large bundles show they are alive
type Progress struct {
	metrics  *Metrics
	buf      *progressBuffer
	interval time.Duration
	logger   zerolog.Logger

	last     ProgressPoint
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewProgress creates a sampler keeping the last size samples
func NewProgress(m *Metrics, interval time.Duration, size int, logger zerolog.Logger) *Progress {
	if interval <= 0 {
		interval = time.Second
	}
	return &Progress{
		metrics:  m,
		buf:      newProgressBuffer(size),
		interval: interval,
		logger:   logger.With().Str("component", "progress").Logger(),
		last:     ProgressPoint{Timestamp: time.Now(), Entities: m.Snapshot().TotalEntities()},
		stopCh:   make(chan struct{}),
	}
}

// Start begins sampling in the background
func (p *Progress) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				point := p.sample()
				p.logger.Info().
					Int64("entities", point.Entities).
					Float64("rate", point.Rate).
					Msg("Decode progress")
			}
		}
	}()
}

// Stop ends sampling and records a final sample
func (p *Progress) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		p.sample()
	})
}

// Recent returns samples from the last d, oldest first
func (p *Progress) Recent(d time.Duration) []ProgressPoint {
	return p.buf.recent(time.Now().Add(-d))
}

func (p *Progress) sample() ProgressPoint {
	now := time.Now()
	point := ProgressPoint{Timestamp: now, Entities: p.metrics.Snapshot().TotalEntities()}
	if elapsed := now.Sub(p.last.Timestamp).Seconds(); elapsed > 0 {
		point.Rate = float64(point.Entities-p.last.Entities) / elapsed
	}
	p.last = point
	p.buf.add(point)
	return point
}
