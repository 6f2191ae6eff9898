package distribution

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
	"github.com/cory-johannsen/lootmaster/internal/storage/postgres"
)

// FileRoster loads the group from a YAML roster file.
type FileRoster struct {
	Path string
}

// LoadGroup reads the roster file.
//
// Postcondition: Returns postgres.ErrGroupNotFound when groupID is non-empty
// and differs from the file's group id.
func (f FileRoster) LoadGroup(_ context.Context, groupID string, jobs *job.Registry) (*roster.Group, error) {
	g, err := roster.LoadGroup(f.Path, jobs)
	if err != nil {
		return nil, err
	}
	if groupID != "" && g.ID != groupID {
		return nil, fmt.Errorf("%w: %s holds %q", postgres.ErrGroupNotFound, f.Path, g.ID)
	}
	return g, nil
}
