package docstore

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

type statistics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	events   *prometheus.CounterVec
	started  time.Time
}

func newStatistics(loaded func() float64) *statistics {
	s := &statistics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstore",
			Name:      "requests_total",
			Help:      "Number of handled HTTP requests.",
		}, []string{"method", "code"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstore",
			Name:      "events_total",
			Help:      "Number of data changes.",
		}, []string{"type"}),
		started: time.Now(),
	}
	s.registry.MustRegister(
		s.requests,
		s.events,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "docstore",
			Name:      "loaded_databases",
			Help:      "Number of databases held in memory.",
		}, loaded),
		collectors.NewGoCollector(),
	)
	return s
}

func (s *statistics) observeRequest(method string, code int) {
	label := "aborted"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	s.requests.WithLabelValues(method, label).Inc()
}

func (s *statistics) observeEvent(ev Event) {
	s.events.WithLabelValues(string(ev.Type)).Inc()
}

func (s *statistics) handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// totals sums the counters of each metric family, and of each value of the
// given label.
func (s *statistics) totals(name, label string) (float64, map[string]float64, error) {
	families, err := s.registry.Gather()
	if err != nil {
		return 0, nil, err
	}
	byLabel := make(map[string]float64)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			v := m.GetCounter().GetValue()
			total += v
			if l := labelValue(m, label); l != "" {
				byLabel[l] += v
			}
		}
	}
	return total, byLabel, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

type databaseStats struct {
	Identifier string `json:"identifier"`
	Documents  int    `json:"documents"`
	Dirty      bool   `json:"dirty"`
}

type serverStats struct {
	Version         string    `json:"version"`
	Started         time.Time `json:"started"`
	Uptime          string    `json:"uptime"`
	MemoryAlloc     uint64    `json:"memoryAlloc"`
	MemorySys       uint64    `json:"memorySys"`
	Requests        float64   `json:"requests"`
	LoadedDatabases int       `json:"loadedDatabases"`
	*detailedStats
}

type detailedStats struct {
	Backend    string             `json:"backend"`
	Goroutines int                `json:"goroutines"`
	NumGC      uint32             `json:"numGC"`
	Events     map[string]float64 `json:"events"`
	Databases  []databaseStats    `json:"databases"`
}

func (s *Server) collectStatistics(detailed bool) (serverStats, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	requests, _, err := s.stats.totals("docstore_requests_total", "code")
	if err != nil {
		return serverStats{}, err
	}
	loaded := s.coordinator.Loaded()

	stats := serverStats{
		Version:         Version,
		Started:         s.stats.started,
		Uptime:          time.Since(s.stats.started).Round(time.Second).String(),
		MemoryAlloc:     mem.Alloc,
		MemorySys:       mem.Sys,
		Requests:        requests,
		LoadedDatabases: len(loaded),
	}
	if !detailed {
		return stats, nil
	}

	_, events, err := s.stats.totals("docstore_events_total", "type")
	if err != nil {
		return serverStats{}, err
	}
	dbs := make([]databaseStats, 0, len(loaded))
	for _, db := range loaded {
		unlock := s.coordinator.Lock(db.Identifier())
		dbs = append(dbs, databaseStats{
			Identifier: db.Identifier(),
			Documents:  db.Count(),
			Dirty:      db.IsDirty(),
		})
		unlock()
	}
	stats.detailedStats = &detailedStats{
		Backend:    s.cfg.Backend,
		Goroutines: runtime.NumGoroutine(),
		NumGC:      mem.NumGC,
		Events:     events,
		Databases:  dbs,
	}
	return stats, nil
}
