// Copyright 2026 The jballoon Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"time"
)

// TextEmitter logs messages in a human-readable plain text format:
//
//	L0825 14:03:07.123456 msg...
//
// where L is a single character representing the log level.
type TextEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e TextEmitter) Emit(_ int, level Level, timestamp time.Time, format string, v ...any) {
	var prefix byte
	switch level {
	case Debug:
		prefix = 'D'
	case Info:
		prefix = 'I'
	case Warning:
		prefix = 'W'
	}
	_, month, day := timestamp.Date()
	hour, minute, second := timestamp.Clock()
	micros := timestamp.Nanosecond() / 1000
	line := fmt.Sprintf("%c%02d%02d %02d:%02d:%02d.%06d %s",
		prefix, int(month), day, hour, minute, second, micros,
		fmt.Sprintf(format, v...))
	e.Writer.Write([]byte(line))
}
