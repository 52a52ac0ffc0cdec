package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"chatbot/internal/metrics"
)

const (
	StatusHealthy     = "healthy"
	StatusUnreachable = "unreachable"
	StatusUnknown     = "unknown"
)

// ServiceStatus is the last known state of one remote service.
type ServiceStatus struct {
	Name      string `json:"name"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	CheckedAt string `json:"checked_at,omitempty"`
}

// CheckAll probes every service concurrently, each bounded by timeout.
func (f *Facade) CheckAll(ctx context.Context, timeout time.Duration) []ServiceStatus {
	clients := f.Clients()
	out := make([]ServiceStatus, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = probe(ctx, c, timeout)
		}()
	}
	wg.Wait()
	return out
}

func probe(ctx context.Context, c *Client, timeout time.Duration) ServiceStatus {
	st := baseStatus(c)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := c.Health(ctx)
	var re *Error
	switch {
	case err == nil:
		st.Status = StatusHealthy
	case errors.As(err, &re) && re.StatusCode != 0:
		st.Status = fmt.Sprintf("error_%d", re.StatusCode)
	default:
		st.Status = StatusUnreachable
	}
	st.CheckedAt = time.Now().UTC().Format(time.RFC3339)
	return st
}

func baseStatus(c *Client) ServiceStatus {
	st := ServiceStatus{Name: c.Name, URL: c.BaseURL, Status: StatusUnknown}
	if u, err := url.Parse(c.BaseURL); err == nil {
		st.Port, _ = strconv.Atoi(u.Port())
	}
	return st
}

// Monitor refreshes service health on a cron schedule and keeps the last snapshot.
type Monitor struct {
	facade   *Facade
	schedule string
	timeout  time.Duration
	log      zerolog.Logger

	cron *cron.Cron
	mu   sync.RWMutex
	last []ServiceStatus
}

func NewMonitor(f *Facade, schedule string, timeout time.Duration, log zerolog.Logger) *Monitor {
	last := make([]ServiceStatus, 0, len(f.Clients()))
	for _, c := range f.Clients() {
		last = append(last, baseStatus(c))
	}
	return &Monitor{facade: f, schedule: schedule, timeout: timeout, log: log, last: last}
}

// Start schedules periodic refreshes. It does not probe immediately.
func (m *Monitor) Start() error {
	m.cron = cron.New()
	if _, err := m.cron.AddFunc(m.schedule, func() { m.Refresh(context.Background()) }); err != nil {
		return fmt.Errorf("health schedule %q: %w", m.schedule, err)
	}
	m.cron.Start()
	return nil
}

// Stop waits for a running refresh to finish.
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

// Refresh probes all services now and stores the result.
func (m *Monitor) Refresh(ctx context.Context) []ServiceStatus {
	next := m.facade.CheckAll(ctx, m.timeout)
	m.mu.Lock()
	prev := m.last
	m.last = next
	m.mu.Unlock()
	for i, st := range next {
		up := 0.0
		if st.Status == StatusHealthy {
			up = 1
		}
		metrics.ServiceUp.WithLabelValues(st.Name).Set(up)
		if i < len(prev) && prev[i].Status != st.Status {
			m.log.Info().Str("service", st.Name).Str("from", prev[i].Status).Str("to", st.Status).Msg("service health changed")
		}
	}
	return cloneStatuses(next)
}

func (m *Monitor) Snapshot() []ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneStatuses(m.last)
}

func cloneStatuses(in []ServiceStatus) []ServiceStatus {
	out := make([]ServiceStatus, len(in))
	copy(out, in)
	return out
}
