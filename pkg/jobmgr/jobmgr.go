// Package jobmgr runs named background jobs with cancellation and tracks the
// ones still running.
//
//	jm := jobmgr.NewManager(ctx, func(msg string) { log.Println("JOB:", msg) })
//	_ = jm.StartAsync("reaper", reaper.Run)
//	_ = jm.Every("prune", time.Hour, prune)
//	defer jm.StopAll()
//
// Jobs run in their own goroutines and are removed on completion. A panicking
// job is reported as an error instead of crashing the process.
package jobmgr

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StatusReporter receives lifecycle events for jobs:
//
//	running:reaper
//	error:reaper:boom
//	done:reaper
type StatusReporter func(string)

// Manager is safe for concurrent use.
type Manager struct {
	parent   context.Context
	mu       sync.Mutex
	jobs     map[string]*job
	Reporter StatusReporter
}

// NewManager derives every job's context from parent. reporter may be nil.
func NewManager(parent context.Context, reporter StatusReporter) *Manager {
	return &Manager{
		parent:   parent,
		jobs:     make(map[string]*job),
		Reporter: reporter,
	}
}

// StartAsync runs runner in a new goroutine. A job with the same name must not
// be running already.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("job '%s' is already running", name)
	}
	ctx, cancel := context.WithCancel(m.parent)
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = j

	go func() {
		defer close(j.done)
		defer cancel()
		m.report("running:" + name)

		if err := safeRun(ctx, runner); err != nil {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		if m.jobs[name] == j {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Every starts a job that calls fn once per interval until stopped.
func (m *Manager) Every(name string, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("job '%s': interval must be positive", name)
	}
	return m.StartAsync(name, func(ctx context.Context) error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				fn(ctx)
			}
		}
	})
}

func safeRun(ctx context.Context, runner func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return runner(ctx)
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	j.cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every job and waits for them to return.
func (m *Manager) StopAll() {
	m.mu.Lock()
	running := make([]*job, 0, len(m.jobs))
	for name, j := range m.jobs {
		j.cancel()
		running = append(running, j)
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	for _, j := range running {
		<-j.done
	}
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Status returns e.g. "Running jobs: node-health, reaper".
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
