package job

// Registry provides lookup of jobs by ID.
type Registry struct {
	jobs map[string]*Job
}

// NewRegistry returns an empty Registry.
//
// Postcondition: Returns a non-nil *Registry ready to accept registrations.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// NewRegistryFrom registers every job in jobs.
func NewRegistryFrom(jobs []*Job) *Registry {
	r := NewRegistry()
	for _, j := range jobs {
		r.Register(j)
	}
	return r
}

// Register adds a Job to the registry.
//
// Precondition: job must be non-nil with a non-empty ID.
// Postcondition: job is retrievable via Job(job.ID); the last registration for an ID wins.
func (r *Registry) Register(job *Job) {
	if job == nil {
		panic("job.Registry.Register: precondition violated: job must be non-nil")
	}
	if job.ID == "" {
		panic("job.Registry.Register: precondition violated: job ID must be non-empty")
	}
	r.jobs[job.ID] = job
}

// Job returns the Job for id, if registered.
func (r *Registry) Job(id string) (*Job, bool) {
	j, ok := r.jobs[id]
	return j, ok
}

// RoleFor returns the role of id, or "" if unknown.
func (r *Registry) RoleFor(id string) Role {
	if j, ok := r.jobs[id]; ok {
		return j.Role
	}
	return ""
}
