package logger

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher ships aggregated log batches to an external sink.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct entries that force an early flush
	Topic          string
	Publisher      Publisher
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Sample    map[string]interface{} `json:"sample"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

const (
	publishTimeout = 10 * time.Second
	pendingBatches = 4
)

type fingerprint struct {
	level, message, component, caller string
}

// LogCollector folds repeated warn/error events into counted entries.
// Events with the same level, message, component and caller share one entry;
// the fields of the first occurrence are kept as its sample.
type LogCollector struct {
	cfg      CollectionConfig
	fallback zerolog.Logger

	mu      sync.Mutex
	entries map[fingerprint]*AggregatedLogEntry
	closed  bool

	batches  chan []AggregatedLogEntry
	stop     chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}

	c := &LogCollector{
		cfg:      cfg,
		fallback: zerolog.New(os.Stderr).With().Timestamp().Str("component", "log-collector").Logger(),
		entries:  make(map[fingerprint]*AggregatedLogEntry),
		batches:  make(chan []AggregatedLogEntry, pendingBatches),
		stop:     make(chan struct{}),
	}

	c.done.Add(2)
	go c.tick()
	go c.send()
	return c
}

// AddLog records one occurrence. Calls after Close are ignored.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	component, _ := fields["component"].(string)
	fp := fingerprint{level: level, message: message, component: component, caller: caller}
	now := time.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	e, ok := c.entries[fp]
	if !ok {
		e = &AggregatedLogEntry{Level: level, Message: message, Sample: fields, Caller: caller, FirstSeen: now}
		c.entries[fp] = e
	}
	e.Count++
	e.LastSeen = now

	if len(c.entries) >= c.cfg.CountThreshold {
		c.enqueueLocked(c.drainLocked())
	}
	c.mu.Unlock()
}

// drainLocked empties the entry table, busiest entries first.
func (c *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[fingerprint]*AggregatedLogEntry)

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Count != batch[j].Count {
			return batch[i].Count > batch[j].Count
		}
		return batch[i].FirstSeen.Before(batch[j].FirstSeen)
	})
	return batch
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	c.enqueueLocked(c.drainLocked())
	c.mu.Unlock()
}

// enqueueLocked hands a batch to the sender without blocking the logging path.
func (c *LogCollector) enqueueLocked(batch []AggregatedLogEntry) {
	if len(batch) == 0 || c.cfg.Publisher == nil {
		return
	}
	select {
	case c.batches <- batch:
	default:
		c.fallback.Warn().Int("entries", len(batch)).Msg("aggregated log batch dropped, sender busy")
	}
}

func (c *LogCollector) tick() {
	defer c.done.Done()

	ticker := time.NewTicker(c.cfg.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stop:
			c.mu.Lock()
			c.enqueueLocked(c.drainLocked())
			c.closed = true
			close(c.batches)
			c.mu.Unlock()
			return
		}
	}
}

func (c *LogCollector) send() {
	defer c.done.Done()

	for batch := range c.batches {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch)
		cancel()
		if err != nil {
			c.fallback.Error().Err(err).Str("topic", c.cfg.Topic).Int("entries", len(batch)).
				Msg("publish aggregated logs")
		}
	}
}

// Close flushes what is pending and waits for the sender to finish.
func (c *LogCollector) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.done.Wait()
}
