package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
)

// registerCatalog installs the catalog.* module:
//
//	catalog.level(id) -> number   (0 for unknown items)
//	catalog.name(id)  -> string   (nil for unknown items)
//	catalog.slots(id) -> {string} (empty for non-gear)
//
// Precondition: L must be from NewSandboxedState; cat must be non-nil.
func registerCatalog(L *lua.LState, cat gear.Catalog) {
	lookup := func(L *lua.LState) (*item.Def, bool) {
		return cat.Item(item.ID(L.CheckInt(1)))
	}
	mod := L.NewTable()
	L.SetField(mod, "level", L.NewFunction(func(L *lua.LState) int {
		lvl := 0
		if d, ok := lookup(L); ok {
			lvl = d.Level
		}
		L.Push(lua.LNumber(lvl))
		return 1
	}))
	L.SetField(mod, "name", L.NewFunction(func(L *lua.LState) int {
		if d, ok := lookup(L); ok {
			L.Push(lua.LString(d.Name))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))
	L.SetField(mod, "slots", L.NewFunction(func(L *lua.LState) int {
		t := L.NewTable()
		if d, ok := lookup(L); ok {
			for _, s := range d.Slots {
				t.Append(lua.LString(s))
			}
		}
		L.Push(t)
		return 1
	}))
	L.SetGlobal("catalog", mod)
}
