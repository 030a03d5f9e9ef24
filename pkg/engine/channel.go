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

// Package engine holds what the NVDEC and VIC command builders share: the
// channel a builder submits through and the method stream it writes into the
// channel's command buffer.
package engine

import (
	"fmt"

	"gvisor.dev/tegravid/pkg/abi/host1x"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/log"
)

// CommandBufferSize is the size of a channel's command buffer.
const CommandBufferSize = 0x1000

// Channel is an engine channel together with its syncpoint and command
// buffer. The zero value is unopened.
type Channel struct {
	dev   *drm.Device
	class host1x.Class

	context   uint64
	syncpt    uint32
	hasSyncpt bool
	cmd       *drm.Buffer
}

// Open opens the channel, allocates the command buffer and reserves the
// syncpoint. Steps that already succeeded are skipped, so Open may be called
// again after a failure. Nothing is rolled back; Close releases what exists.
func (c *Channel) Open(dev *drm.Device, class host1x.Class) error {
	if c.dev != nil && (c.dev != dev || c.class != class) {
		return fmt.Errorf("channel already bound to %v on another device", c.class)
	}
	c.dev = dev
	c.class = class
	if c.context == 0 {
		ctx, err := dev.OpenChannel(class)
		if err != nil {
			return err
		}
		c.context = ctx
	}
	if c.cmd == nil {
		cmd, err := dev.Allocate(CommandBufferSize)
		if err != nil {
			return err
		}
		c.cmd = cmd
	}
	if !c.hasSyncpt {
		id, err := dev.AllocateSyncpoint(c.context)
		if err != nil {
			return err
		}
		c.syncpt = id
		c.hasSyncpt = true
	}
	return nil
}

// Opened reports whether every Open step has succeeded.
func (c *Channel) Opened() bool {
	return c.context != 0 && c.cmd != nil && c.hasSyncpt
}

// Device returns the device the channel was opened on.
func (c *Channel) Device() *drm.Device {
	return c.dev
}

// Context returns the channel context.
func (c *Channel) Context() uint64 {
	return c.context
}

// Syncpoint returns the channel's syncpoint.
func (c *Channel) Syncpoint() uint32 {
	return c.syncpt
}

// Close frees the syncpoint, the command buffer and the channel, in that
// order. It is safe to call on a partially opened or closed Channel.
func (c *Channel) Close() error {
	var firstErr error
	if c.hasSyncpt {
		if err := c.dev.FreeSyncpoint(c.syncpt); err != nil && firstErr == nil {
			firstErr = err
		}
		c.hasSyncpt = false
	}
	if c.cmd != nil {
		if err := c.cmd.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.cmd = nil
	}
	if c.context != 0 {
		if err := c.dev.CloseChannel(c.context); err != nil && firstErr == nil {
			firstErr = err
		}
		c.context = 0
	}
	if firstErr != nil {
		log.Warningf("Closing %v channel: %v", c.class, firstErr)
	}
	return firstErr
}
