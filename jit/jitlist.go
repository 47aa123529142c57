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
package jit

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ulikunitz/xz"

	"github.com/alexdoesh/cinder/interp"
)

// JitList is the allow-list of functions eligible for compilation.
// Entries are module:qualname; the wildcard variant additionally accepts
// "*" as the module token, matching the qualname in any module.
type JitList struct {
	mu       sync.RWMutex
	entries  map[string]map[string]struct{}
	wildcard bool
	path     string
	watcher  *fsnotify.Watcher
}

func NewJitList(wildcard bool) *JitList {
	return &JitList{entries: make(map[string]map[string]struct{}), wildcard: wildcard}
}

// ParseFile loads the list from a text file (transparently decompressing
// .xz). Returns false on any parse failure; the previous content is kept.
func (l *JitList) ParseFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		Log("Unable to open jit-list %s: %s", path, err)
		return false
	}
	defer f.Close()
	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(r)
		if err != nil {
			Log("Unable to read compressed jit-list %s: %s", path, err)
			return false
		}
		r = xr
	}

	entries := make(map[string]map[string]struct{})
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !parseLine(entries, line, l.wildcard) {
			Log("Error while parsing jit-list %s line %d: %s", path, lineno, line)
			return false
		}
	}
	if err := scanner.Err(); err != nil {
		Log("Error while reading jit-list %s: %s", path, err)
		return false
	}

	l.mu.Lock()
	l.entries = entries
	l.path = path
	l.mu.Unlock()
	return true
}

func parseLine(entries map[string]map[string]struct{}, line string, wildcard bool) bool {
	module, qualname, ok := strings.Cut(line, ":")
	if !ok {
		return false
	}
	if module == "*" {
		if !wildcard {
			return false
		}
	} else if !validName(module) {
		return false
	}
	if !validName(qualname) {
		return false
	}
	set, ok := entries[module]
	if !ok {
		set = make(map[string]struct{})
		entries[module] = set
	}
	set[qualname] = struct{}{}
	return true
}

// validName accepts dotted identifiers: a.b.C.method
func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '<', r == '>':
			case r >= '0' && r <= '9':
				if i == 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

// Lookup checks a function's module-qualified name against the list.
// Exact module match wins; the wildcard bucket is consulted second. An
// unset module falls through to the wildcard bucket only.
func (l *JitList) Lookup(fn *interp.FuncObject) bool {
	return l.LookupName(fn.Module, fn.Qualname())
}

func (l *JitList) LookupName(module string, qualname string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if module != "" {
		if set, ok := l.entries[module]; ok {
			if _, ok := set[qualname]; ok {
				return true
			}
		}
	}
	if l.wildcard {
		if set, ok := l.entries["*"]; ok {
			if _, ok := set[qualname]; ok {
				return true
			}
		}
	}
	return false
}

// List returns all entries as "module:qualname", sorted, for the
// introspection surface.
func (l *JitList) List() []interp.Value {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for module, set := range l.entries {
		for qualname := range set {
			out = append(out, module+":"+qualname)
		}
	}
	sort.Strings(out)
	res := make([]interp.Value, len(out))
	for i, s := range out {
		res[i] = s
	}
	return res
}

// Watch reloads the list whenever the file changes on disk. Changes only
// affect future eligibility decisions.
func (l *JitList) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	l.mu.Lock()
	path := l.path
	l.watcher = watcher
	l.mu.Unlock()
	go func() {
		for range watcher.Events {
			// flush all other events
			for {
				time.Sleep(10 * time.Millisecond) // delay a bit, so we don't read half-written files
				select {
				case <-watcher.Events:
					// ignore
				default:
					goto to_reread
				}
			}
		to_reread:
			if !l.ParseFile(path) {
				Log("jit-list reload failed, keeping previous list")
			} else {
				DLog("jit-list %s reloaded", path)
			}
			watcher.Add(path) // text editors rename, so we have to rewatch
		}
	}()
	return watcher.Add(path)
}

// Close stops a running watcher.
func (l *JitList) Close() {
	l.mu.Lock()
	w := l.watcher
	l.watcher = nil
	l.mu.Unlock()
	if w != nil {
		w.Close()
	}
}
