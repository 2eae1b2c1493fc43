package cron

import (
	"context"
	"fmt"
	"slices"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry runs jobs in the order they were added. Names are unique.
type Registry struct {
	jobs []Job
}

// NewRegistry adds the given jobs, ignoring nils. A duplicate name is a
// wiring bug and panics.
func NewRegistry(jobs ...Job) *Registry {
	r := new(Registry)
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if slices.Contains(r.Names(), job.Name()) {
		return fmt.Errorf("cron job %q already registered", job.Name())
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy callers may reorder freely.
func (r *Registry) Jobs() []Job { return slices.Clone(r.jobs) }

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}
