// Copyright 2023 The acquirecloud Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package arena

import (
	"github.com/cshenton/block-allocator/golibs/container"
	"github.com/cshenton/block-allocator/golibs/ulidutils"
)

// EventKind distinguishes the two events an Arena records.
type EventKind int

const (
	eventReserve EventKind = iota
	eventRelease
)

// Event is one audit-log entry for an Arena's Reserve/Release call. ID is
// a lexicographically sortable ULID, so a slice of Events returned by
// RecentEvents is already in occurrence order.
type Event struct {
	ID     string
	Kind   EventKind
	Offset uint32
	Size   uint32
}

// eventLog is a bounded, overwrite-oldest audit trail backed by a
// container.RingBuffer. It never blocks or grows past its initial capacity.
type eventLog struct {
	buf container.RingBuffer[Event]
}

func newEventLog(capacity uint) *eventLog {
	return &eventLog{buf: container.NewRingBuffer[Event](capacity)}
}

func (l *eventLog) record(kind EventKind, offset, size uint32) {
	e := Event{ID: ulidutils.NewID(), Kind: kind, Offset: offset, Size: size}
	if l.buf.Len() == l.buf.Cap() {
		l.buf.Skip(1)
	}
	_ = l.buf.Write(e)
}

// recent returns up to n of the most recently recorded events, oldest
// first, or every recorded event if fewer than n remain.
func (l *eventLog) recent(n int) []Event {
	total := l.buf.Len()
	if n > total {
		n = total
	}
	skip := total - n
	out := make([]Event, 0, n)
	for i := skip; i < total; i++ {
		out = append(out, l.buf.At(i))
	}
	return out
}
