package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type backends map[string]bool

func (b backends) HealthCheck(context.Context) map[string]bool { return b }

type probe bool

func (p probe) Health(context.Context) bool { return bool(p) }

func TestChecker(t *testing.T) {
	var disabled Prober
	c := NewChecker(backends{"openai": false, "ollama": true}, map[string]Prober{
		"whisper": probe(false),
		"piper":   probe(true),
		"off":     disabled,
	})

	r := c.Check(context.Background())
	assert.Equal(t, []Component{
		{Name: "ollama", Kind: KindBackend, Healthy: true},
		{Name: "openai", Kind: KindBackend, Healthy: false},
		{Name: "piper", Kind: KindAudio, Healthy: true},
		{Name: "whisper", Kind: KindAudio, Healthy: false},
	}, r.Components)
	assert.True(t, r.Healthy())
}

func TestReport_UnhealthyWithoutBackends(t *testing.T) {
	r := NewChecker(backends{"ollama": false}, map[string]Prober{"piper": probe(true)}).Check(context.Background())
	assert.False(t, r.Healthy())

	r = NewChecker(backends{}, nil).Check(context.Background())
	assert.False(t, r.Healthy())
	assert.Empty(t, r.Components)
}
