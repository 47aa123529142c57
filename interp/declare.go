/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package interp

import "fmt"
import "sort"
import "strings"

type Declaration struct {
	Name         string
	Desc         string
	MinParameter int
	MaxParameter int
	Params       []DeclarationParameter
	Returns      string // any | string | number | int | bool | func | list | set | nil
	Fn           func(...Value) Value
}

type DeclarationParameter struct {
	Name string
	Type string // any | string | number | int | bool | func | list | set | nil
	Desc string
}

// Module is a named group of builtins callable from the embedded
// language (and from tests).
type Module struct {
	Name   string
	titles []string
	decls  map[string]*Declaration
}

var modules = make(map[string]*Module)

// NewModule registers a builtin module. Re-registering replaces the old
// content, which happens when the JIT is re-initialized in tests.
func NewModule(name string) *Module {
	m := &Module{Name: name, decls: make(map[string]*Declaration)}
	modules[name] = m
	return m
}

func GetModule(name string) *Module {
	return modules[name]
}

func (m *Module) DeclareTitle(title string) {
	m.titles = append(m.titles, "#"+title)
}

func (m *Module) Declare(def *Declaration) {
	m.titles = append(m.titles, def.Name)
	m.decls[def.Name] = def
}

func (m *Module) Lookup(name string) *Declaration {
	return m.decls[name]
}

// Call invokes a declared builtin with arity checking.
func (m *Module) Call(name string, args ...Value) Value {
	def := m.decls[name]
	if def == nil {
		panic(m.Name + " has no function " + name)
	}
	if len(args) < def.MinParameter || len(args) > def.MaxParameter {
		panic(fmt.Sprintf("%s.%s expects %d..%d parameters, got %d",
			m.Name, name, def.MinParameter, def.MaxParameter, len(args)))
	}
	return def.Fn(args...)
}

// Help prints the declarations of a module, or one function's docs.
func (m *Module) Help(topic string) {
	if topic != "" {
		def := m.decls[topic]
		if def == nil {
			fmt.Println("no help for " + topic)
			return
		}
		fmt.Println(def.Name + ": " + def.Desc)
		for _, p := range def.Params {
			fmt.Println("  " + p.Name + " (" + p.Type + "): " + p.Desc)
		}
		fmt.Println("  returns " + def.Returns)
		return
	}
	for _, t := range m.titles {
		if strings.HasPrefix(t, "#") {
			fmt.Println("\n" + strings.TrimPrefix(t, "#"))
			continue
		}
		fmt.Println("  " + t + " - " + m.decls[t].Desc)
	}
}

// Names returns all declared function names, sorted.
func (m *Module) Names() []string {
	names := make([]string, 0, len(m.decls))
	for n := range m.decls {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
