package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Statistics is the blocking-API view of §4.1's last paragraph: sent and
// received counts, plus the number of collective rounds issued.
type Statistics struct {
	Sent     uint64
	Received uint64
	Rounds   uint64
}

// statsCollector tracks the counters and doubles as a prometheus.Collector
// so a process embedding the queue can scrape them, mirroring
// runZeroInc-conniver's TCPInfoCollector (mutex-guarded map, Describe/
// Collect pair) adapted to three scalar counters instead of a per-
// connection table.
type statsCollector struct {
	mu       sync.Mutex
	sent     uint64
	received uint64
	rounds   uint64

	sentDesc     *prometheus.Desc
	receivedDesc *prometheus.Desc
	roundsDesc   *prometheus.Desc
}

func newStatsCollector(partyLabel string) *statsCollector {
	labels := prometheus.Labels{"party": partyLabel}
	return &statsCollector{
		sentDesc:     prometheus.NewDesc("hmpc_messages_sent_total", "Messages enqueued for sending.", nil, labels),
		receivedDesc: prometheus.NewDesc("hmpc_messages_received_total", "Messages received and delivered to a collective call.", nil, labels),
		roundsDesc:   prometheus.NewDesc("hmpc_collective_rounds_total", "Collective calls issued.", nil, labels),
	}
}

func (s *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.sentDesc
	ch <- s.receivedDesc
	ch <- s.roundsDesc
}

func (s *statsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := s.snapshot()
	ch <- prometheus.MustNewConstMetric(s.sentDesc, prometheus.CounterValue, float64(snap.Sent))
	ch <- prometheus.MustNewConstMetric(s.receivedDesc, prometheus.CounterValue, float64(snap.Received))
	ch <- prometheus.MustNewConstMetric(s.roundsDesc, prometheus.CounterValue, float64(snap.Rounds))
}

func (s *statsCollector) addSent(n uint64) {
	s.mu.Lock()
	s.sent += n
	s.mu.Unlock()
}

func (s *statsCollector) addReceived(n uint64) {
	s.mu.Lock()
	s.received += n
	s.mu.Unlock()
}

func (s *statsCollector) addRound() {
	s.mu.Lock()
	s.rounds++
	s.mu.Unlock()
}

func (s *statsCollector) snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Statistics{Sent: s.sent, Received: s.received, Rounds: s.rounds}
}

var _ prometheus.Collector = (*statsCollector)(nil)
