// Package job defines playable jobs and the combat roles they fill.
package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Role is the position a job fills in a group.
type Role string

const (
	RoleTank   Role = "tank"
	RoleHealer Role = "healer"
	RoleMelee  Role = "melee"
	RoleRanged Role = "ranged"
	RoleCaster Role = "caster"
	// RoleDPS groups melee, ranged and caster when sub-roles are not distinguished.
	RoleDPS Role = "dps"
)

// Group returns the coarse role: tank, healer, or dps.
func (r Role) Group() Role {
	switch r {
	case RoleMelee, RoleRanged, RoleCaster:
		return RoleDPS
	}
	return r
}

// Job defines a concrete playable job.
//
// Precondition: ID, Name and Role must be non-zero after loading.
type Job struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
	Role Role   `yaml:"role" validate:"oneof=tank healer melee ranged caster"`
	// OffHand marks jobs that equip a separate off-hand item.
	OffHand bool `yaml:"off_hand"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the Job satisfies its invariants.
func (j *Job) Validate() error {
	if err := validate.Struct(j); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("job validation failed: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("job %q validation failed: %s", j.ID, strings.Join(msgs, "; "))
	}
	return nil
}

// LoadJobs reads all .yaml files in dir; each file holds a list of jobs.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed jobs sorted by ID or a non-nil error.
func LoadJobs(dir string) ([]*Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading job dir %s: %w", dir, err)
	}
	var jobs []*Job
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var batch []*Job
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parsing job file %s: %w", path, err)
		}
		for _, j := range batch {
			if err := j.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		jobs = append(jobs, batch...)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs, nil
}
