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
	"fmt"
	"os"
	"strings"

	"github.com/launix-de/go-mysqlstack/xlog"
)

var log = xlog.NewStdLog(xlog.Level(xlog.INFO))
var debugLogging bool
var logFile *os.File

// Log always logs (level INFO).
func Log(format string, args ...interface{}) {
	log.Info(format, args...)
}

// DLog logs only when jit-debug is on.
func DLog(format string, args ...interface{}) {
	log.Debug(format, args...)
}

func setDebugLogging(on bool) {
	debugLogging = on
	rebuildLogger()
}

// redirectLogFile points the JIT log at a file; "{pid}" in the name is
// replaced by the process id. Falls back to stderr on open failure.
func redirectLogFile(name string) {
	name = strings.ReplaceAll(name, "{pid}", fmt.Sprint(os.Getpid()))
	f, err := os.Create(name)
	if err != nil {
		Log("Couldn't open log file %s (%s), logging to stderr", name, err)
		return
	}
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	rebuildLogger()
}

func rebuildLogger() {
	level := xlog.INFO
	if debugLogging {
		level = xlog.DEBUG
	}
	if logFile != nil {
		log = xlog.NewXLog(logFile, xlog.Level(level))
	} else {
		log = xlog.NewStdLog(xlog.Level(level))
	}
}
