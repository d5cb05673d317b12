package health

import (
	"context"
	"sort"
	"sync"
)

type BackendProber interface {
	HealthCheck(ctx context.Context) map[string]bool
}

type Prober interface {
	Health(ctx context.Context) bool
}

type Component struct {
	Name    string
	Kind    string
	Healthy bool
}

// Report lists components sorted by kind then name.
type Report struct {
	Components []Component
}

// Healthy reports whether at least one backend is up. Audio services are
// optional and never make the report unhealthy.
func (r Report) Healthy() bool {
	for _, c := range r.Components {
		if c.Kind == KindBackend && c.Healthy {
			return true
		}
	}
	return false
}

const (
	KindBackend = "backend"
	KindAudio   = "audio"
)

type Checker struct {
	backends BackendProber
	audio    map[string]Prober
}

// NewChecker takes the audio services by name; nil probers are skipped so
// callers can pass disabled services directly.
func NewChecker(backends BackendProber, audio map[string]Prober) *Checker {
	a := make(map[string]Prober, len(audio))
	for name, p := range audio {
		if p != nil {
			a[name] = p
		}
	}
	return &Checker{backends: backends, audio: a}
}

func (c *Checker) Check(ctx context.Context) Report {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []Component
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		res := c.backends.HealthCheck(ctx)
		mu.Lock()
		defer mu.Unlock()
		for name, ok := range res {
			out = append(out, Component{Name: name, Kind: KindBackend, Healthy: ok})
		}
	}()

	for name, p := range c.audio {
		wg.Add(1)
		go func(name string, p Prober) {
			defer wg.Done()
			ok := p.Health(ctx)
			mu.Lock()
			defer mu.Unlock()
			out = append(out, Component{Name: name, Kind: KindAudio, Healthy: ok})
		}(name, p)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindBackend
		}
		return out[i].Name < out[j].Name
	})
	return Report{Components: out}
}
