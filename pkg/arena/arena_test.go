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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cshenton/block-allocator/golibs/container/bytes"
	"github.com/cshenton/block-allocator/golibs/errors"
)

func TestArenaReserveWritesThroughToBuffer(t *testing.T) {
	buf := bytes.NewInMemBytes(1024)
	a, err := New("test", 1024, buf)
	assert.NoError(t, err)
	defer a.Close()

	r, err := a.Reserve(16)
	assert.NoError(t, err)
	copy(r.Bytes, []byte("hello arena!"))

	b2, err := buf.Buffer(int64(r.Offset), int(r.Size))
	assert.NoError(t, err)
	assert.Equal(t, "hello arena!", string(b2[:12]))

	a.Release(r)
	stat := a.Stat()
	assert.Equal(t, int64(1024), stat.FreeBytes)
	assert.Equal(t, 0, stat.UsedBlocks)
}

func TestArenaRejectsUndersizedBuffer(t *testing.T) {
	buf := bytes.NewInMemBytes(10)
	_, err := New("test", 1024, buf)
	assert.ErrorIs(t, err, errors.ErrInvalid)
}

func TestArenaRecentEvents(t *testing.T) {
	buf := bytes.NewInMemBytes(1024)
	a, _ := New("test", 1024, buf)
	defer a.Close()

	r1, _ := a.Reserve(100)
	r2, _ := a.Reserve(100)
	a.Release(r1)
	a.Release(r2)

	events := a.RecentEvents(10)
	assert.Len(t, events, 4)
	assert.Equal(t, eventReserve, events[0].Kind)
	assert.Equal(t, eventReserve, events[1].Kind)
	assert.Equal(t, eventRelease, events[2].Kind)
	assert.Equal(t, eventRelease, events[3].Kind)
}

func TestRegistryCreateGetRemove(t *testing.T) {
	reg := NewRegistry(func(size uint32) (bytes.Buffer, error) {
		return bytes.NewInMemBytes(int(size)), nil
	})
	assert.NoError(t, reg.Init(context.Background()))
	defer reg.Shutdown()

	token, err := reg.Create("scratch", 4096)
	assert.NoError(t, err)

	a, err := reg.Get(token)
	assert.NoError(t, err)
	assert.NotNil(t, a)

	_, err = reg.Create("scratch", 4096)
	assert.ErrorIs(t, err, errors.ErrExist)

	assert.NoError(t, reg.Remove(token))
	_, err = reg.Get(token)
	assert.ErrorIs(t, err, errors.ErrNotExist)
}
