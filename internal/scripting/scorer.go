package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
)

// scoreFunc is the global every scoring script must define:
//
//	function score(job, gear) return number end
const scoreFunc = "score"

// Scorer evaluates gear sets with a Lua score function.
//
// Scorer is safe for concurrent use; calls are serialized on one LState.
type Scorer struct {
	mu        sync.Mutex
	L         *lua.LState
	fn        *lua.LFunction
	instLimit int
	catalog   gear.Catalog
	logger    *zap.Logger
}

// LoadScorer creates a sandboxed VM, registers the catalog module and executes
// path. A directory has every *.lua file in it executed in lexicographic order.
//
// Precondition: cat and logger must be non-nil.
// Postcondition: Returns a Scorer whose script defines a global score function,
// or an error describing why it does not.
func LoadScorer(path string, instLimit int, cat gear.Catalog, logger *zap.Logger) (*Scorer, error) {
	files, err := luaFiles(path)
	if err != nil {
		return nil, err
	}

	L := NewSandboxedState(instLimit)
	registerCatalog(L, cat)
	for _, f := range files {
		cancel := Arm(L, instLimit)
		err := L.DoFile(f)
		cancel()
		if err != nil {
			L.Close()
			return nil, fmt.Errorf("scripting: loading %q: %w", f, err)
		}
	}

	fn, ok := L.GetGlobal(scoreFunc).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("scripting: %q does not define function %s(job, gear)", path, scoreFunc)
	}
	logger.Info("scoring script loaded", zap.String("path", path), zap.Int("files", len(files)))
	return &Scorer{L: L, fn: fn, instLimit: instLimit, catalog: cat, logger: logger}, nil
}

func luaFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Score calls score(job, gear) with a fresh instruction budget.
//
// Postcondition: Returns the script's numeric result, or an error when the
// script fails, exceeds its budget, or returns a non-number.
func (s *Scorer) Score(j *job.Job, set *gear.Set) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel := Arm(s.L, s.instLimit)
	defer cancel()

	if err := s.L.CallByParam(lua.P{
		Fn:      s.fn,
		NRet:    1,
		Protect: true,
	}, s.jobTable(j), s.gearTable(set)); err != nil {
		return 0, fmt.Errorf("scripting: score %s: %w", j.ID, err)
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("scripting: score %s returned %s, want number", j.ID, ret.Type())
	}
	return float64(n), nil
}

// Close releases the VM.
func (s *Scorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.L.Close()
	return nil
}

func (s *Scorer) jobTable(j *job.Job) *lua.LTable {
	t := s.L.NewTable()
	s.L.SetField(t, "id", lua.LString(j.ID))
	s.L.SetField(t, "name", lua.LString(j.Name))
	s.L.SetField(t, "role", lua.LString(j.Role))
	s.L.SetField(t, "group", lua.LString(j.Role.Group()))
	s.L.SetField(t, "off_hand", lua.LBool(j.OffHand))
	return t
}

// gearTable renders set as {slot = {item, name, level, materia = {...}}}.
func (s *Scorer) gearTable(set *gear.Set) *lua.LTable {
	t := s.L.NewTable()
	for slot, p := range set.Pieces() {
		pt := s.L.NewTable()
		s.L.SetField(pt, "item", lua.LNumber(p.Item))
		if d, ok := s.catalog.Item(p.Item); ok {
			s.L.SetField(pt, "name", lua.LString(d.Name))
			s.L.SetField(pt, "level", lua.LNumber(d.Level))
		} else {
			s.L.SetField(pt, "level", lua.LNumber(0))
		}
		mt := s.L.NewTable()
		for _, m := range p.Materia {
			mt.Append(lua.LString(m))
		}
		s.L.SetField(pt, "materia", mt)
		s.L.SetField(t, string(slot), pt)
	}
	return t
}
