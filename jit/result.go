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

// Result is the outcome of a compilation request.
type Result int

const (
	Ok Result = iota
	// CannotSpecialize: the function is not eligible (not on the
	// jit-list, or the back-end cannot handle its code).
	CannotSpecialize
	// Retry: transient failure; re-attempt later in single-threaded
	// context.
	Retry
	NotInitialized
	UnknownError
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case CannotSpecialize:
		return "cannot specialize"
	case Retry:
		return "retry"
	case NotInitialized:
		return "not initialized"
	}
	return "unknown error"
}
