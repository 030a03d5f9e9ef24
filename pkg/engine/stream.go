// Copyright 2025 The gVisor Authors.
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

package engine

import (
	"encoding/binary"

	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
	"gvisor.dev/tegravid/pkg/log"
)

// Placeholder is written in place of buffer addresses the kernel patches.
const Placeholder = 0xdeadbeef

// RelocShift converts byte addresses into the 256 byte units engines take.
const RelocShift = 8

// MethodWords is the number of words one method write occupies.
const MethodWords = 3

// Stream writes engine methods into a channel's command buffer. The first
// failure sticks: later writes are dropped and Submit reports it without
// submitting anything.
type Stream struct {
	ch     *Channel
	buf    []byte
	words  uint32
	relocs []drm.Reloc
	err    error
}

// Begin zeroes the command buffer and starts a new stream in it. The channel
// must be open and have no other stream in progress.
func (c *Channel) Begin() *Stream {
	s := &Stream{ch: c}
	if !c.Opened() {
		s.err = hwerr.Wrapf(hwerr.OperationFailed, nil, "%v channel not open", c.class)
		return s
	}
	buf, err := c.cmd.Map()
	if err != nil {
		s.err = hwerr.Wrap(hwerr.OperationFailed, err)
		return s
	}
	clear(buf)
	s.buf = buf
	return s
}

func (s *Stream) word(w uint32) {
	if s.err != nil {
		return
	}
	if int(s.words+1)*4 > len(s.buf) {
		s.err = hwerr.Wrapf(hwerr.OperationFailed, nil, "command buffer full at %d words", s.words)
		return
	}
	binary.NativeEndian.PutUint32(s.buf[s.words*4:], w)
	s.words++
}

// Method writes value to the engine method at byte offset method.
func (s *Stream) Method(method, value uint32) {
	s.word(host1x.OpcodeIncr(host1x.UclassMethodOffset, 2))
	s.word(method >> 2)
	s.word(value)
}

// Buffer writes the address of b plus offset to method. b is mapped into the
// channel first, read-write if readWrite is set.
func (s *Stream) Buffer(method uint32, b *drm.Buffer, offset uint32, readWrite bool) {
	if s.err != nil {
		return
	}
	if b == nil {
		s.err = hwerr.Wrapf(hwerr.InternalNullBuffer, nil, "method %#x", method)
		return
	}
	if _, err := b.ChannelMap(s.ch.context, readWrite); err != nil {
		s.err = hwerr.Wrapf(hwerr.OperationFailed, err, "method %#x", method)
		return
	}
	s.Method(method, Placeholder)
	if s.err != nil {
		return
	}
	s.relocs = append(s.relocs, drm.Reloc{
		Target: b,
		Offset: offset,
		Word:   s.words - 1,
		Shift:  RelocShift,
	})
}

// Err returns the first error the stream hit.
func (s *Stream) Err() error {
	return s.err
}

// Words returns the number of words written so far.
func (s *Stream) Words() uint32 {
	return s.words
}

// Relocs returns the relocations recorded so far.
func (s *Stream) Relocs() []drm.Reloc {
	return s.relocs
}

// Submit terminates the stream with the syncpoint increment, submits it and
// waits for the engine to finish.
func (s *Stream) Submit() error {
	c := s.ch
	s.word(host1x.OpcodeNonIncr(host1x.UclassIncrSyncpt, 1))
	s.word(host1x.IncrSyncptArg(c.syncpt, c.dev.Platform().SyncpointCondShift()))
	if s.err != nil {
		return s.err
	}
	log.Debugf("Submitting %d words with %d relocations to %v context %d", s.words, len(s.relocs), c.class, c.context)
	threshold, err := c.dev.Submit(&drm.Submission{
		Context:   c.context,
		Syncpoint: c.syncpt,
		Cmdbuf:    c.cmd,
		Words:     s.words,
		Relocs:    s.relocs,
	})
	if err != nil {
		return err
	}
	return c.dev.WaitSyncpoint(c.syncpt, threshold)
}
