package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: JobSquareSync}
	jobB := &stubJob{name: JobModelReload}
	require.NoError(t, registry.Register(jobA))
	require.NoError(t, registry.Register(jobB))
	require.NoError(t, registry.Register(nil))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	// callers cannot mutate the internal slice
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: JobTrainingExport})
	err := registry.Register(&stubJob{name: JobTrainingExport})
	require.Error(t, err)
	assert.Len(t, registry.Jobs(), 1)

	assert.Panics(t, func() {
		NewRegistry(&stubJob{name: "x"}, &stubJob{name: "x"})
	})
}

func TestRegistryLookup(t *testing.T) {
	export := &stubJob{name: JobTrainingExport}
	registry := NewRegistry(&stubJob{name: JobSquareSync}, export)

	job, ok := registry.Lookup(JobTrainingExport)
	require.True(t, ok)
	assert.Same(t, export, job)

	_, ok = registry.Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, []string{JobSquareSync, JobTrainingExport}, registry.Names())
}
