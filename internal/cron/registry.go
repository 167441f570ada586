package cron

import (
	"context"
	"fmt"
	"sort"
)

// Job is one unit of scheduled work, e.g. the Square sync pass.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order; names are unique.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

// NewRegistry panics on duplicate names; it is only called during wiring.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			panic(err)
		}
	}
	return registry
}

// Register adds a job. Nil jobs are ignored so optional integrations can be
// passed through unconditionally.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if r.byName == nil {
		r.byName = map[string]Job{}
	}
	if _, dup := r.byName[job.Name()]; dup {
		return fmt.Errorf("cron job %q already registered", job.Name())
	}
	r.byName[job.Name()] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Lookup finds a job by name for one-off runs.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[name]
	return job, ok
}

// Names lists job names alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	sort.Strings(names)
	return names
}
