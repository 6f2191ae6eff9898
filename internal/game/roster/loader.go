package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
)

type pieceFile struct {
	Item    item.ID  `yaml:"item"`
	Materia []string `yaml:"materia"`
}

type jobFile struct {
	Job     string               `yaml:"job"`
	Level   int                  `yaml:"level"`
	Current map[string]pieceFile `yaml:"current"`
	BiS     map[string]pieceFile `yaml:"bis"`
}

type playerFile struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	Position  string          `yaml:"position"`
	Jobs      []jobFile       `yaml:"jobs"`
	Inventory map[item.ID]int `yaml:"inventory"`
}

type groupFile struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Members []playerFile `yaml:"members"`
}

// LoadGroup reads a group definition from a YAML file.
//
// Precondition: path must be readable; jobs must hold every job the file names.
// Postcondition: Returns a Group whose members keep file order, or a non-nil error.
func LoadGroup(path string, jobs *job.Registry) (*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	return ParseGroup(data, jobs)
}

// ParseGroup decodes a YAML group definition.
func ParseGroup(data []byte, jobs *job.Registry) (*Group, error) {
	var gf groupFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	g := &Group{ID: gf.ID, Name: gf.Name}
	seen := make(map[string]bool, len(gf.Members))
	for _, pf := range gf.Members {
		if pf.ID == "" {
			return nil, fmt.Errorf("roster %q: member %q has no id", gf.ID, pf.Name)
		}
		if seen[pf.ID] {
			return nil, fmt.Errorf("roster %q: duplicate member id %q", gf.ID, pf.ID)
		}
		seen[pf.ID] = true

		p := &Player{ID: pf.ID, Name: pf.Name, Position: pf.Position, Inventory: NewInventory()}
		for id, n := range pf.Inventory {
			p.Inventory.Add(id, n)
		}
		for _, jf := range pf.Jobs {
			j, ok := jobs.Job(jf.Job)
			if !ok {
				return nil, fmt.Errorf("roster %q: member %q plays unknown job %q", gf.ID, pf.ID, jf.Job)
			}
			js := NewJobState(j, jf.Level)
			if err := fillSet(js.Current, jf.Current); err != nil {
				return nil, fmt.Errorf("roster %q: member %q current gear: %w", gf.ID, pf.ID, err)
			}
			if err := fillSet(js.BiS, jf.BiS); err != nil {
				return nil, fmt.Errorf("roster %q: member %q bis: %w", gf.ID, pf.ID, err)
			}
			p.Jobs = append(p.Jobs, js)
		}
		g.Members = append(g.Members, p)
	}
	return g, nil
}

func fillSet(s *gear.Set, pieces map[string]pieceFile) error {
	for raw, pf := range pieces {
		slot, err := item.ParseSlot(raw)
		if err != nil {
			return err
		}
		piece := gear.Piece{Item: pf.Item}
		for _, m := range pf.Materia {
			piece.Materia = append(piece.Materia, gear.Materia(m))
		}
		s.Put(slot, piece)
	}
	return nil
}
