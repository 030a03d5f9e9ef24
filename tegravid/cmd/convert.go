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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/cleanup"
	"gvisor.dev/tegravid/pkg/engine/vic"
	"gvisor.dev/tegravid/pkg/log"
	"gvisor.dev/tegravid/pkg/surface"
	"gvisor.dev/tegravid/tegravid/config"
)

// Convert implements subcommands.Command for the "convert" command.
type Convert struct {
	width     uint
	height    uint
	outWidth  uint
	outHeight uint
	jobs      int
}

// Name implements subcommands.Command.Name.
func (*Convert) Name() string {
	return "convert"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Convert) Synopsis() string {
	return "convert raw NV12 frames to ARGB using VIC"
}

// Usage implements subcommands.Command.Usage.
func (*Convert) Usage() string {
	return `convert [flags] <input> <output> - convert raw NV12 frames to ARGB8888.

The input holds packed NV12 frames of -width x -height pixels. Each frame is
scaled to -out-width x -out-height and written to the output as packed
ARGB8888 rows.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Convert) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.width, "width", 0, "input frame width in pixels, must be even.")
	f.UintVar(&c.height, "height", 0, "input frame height in pixels, must be even.")
	f.UintVar(&c.outWidth, "out-width", 0, "output frame width in pixels, defaults to -width.")
	f.UintVar(&c.outHeight, "out-height", 0, "output frame height in pixels, defaults to -height.")
	f.IntVar(&c.jobs, "jobs", 1, "number of VIC channels converting frames in parallel.")
}

// Execute implements subcommands.Command.Execute.
func (c *Convert) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	job, err := c.newJob()
	if err != nil {
		Fatalf("%v", err)
	}
	in, err := os.ReadFile(f.Arg(0))
	if err != nil {
		Fatalf("reading input: %v", err)
	}
	out, err := job.run(ctx, conf, in)
	if err != nil {
		Fatalf("converting %q: %v", f.Arg(0), err)
	}
	if err := os.WriteFile(f.Arg(1), out, 0644); err != nil {
		Fatalf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// convertJob is a validated conversion request.
type convertJob struct {
	in   surface.Layout
	out  surface.Layout
	jobs int
}

func (c *Convert) newJob() (*convertJob, error) {
	if c.width%2 != 0 || c.height%2 != 0 {
		return nil, fmt.Errorf("input size %dx%d must be even", c.width, c.height)
	}
	if c.jobs < 1 {
		return nil, fmt.Errorf("jobs must be at least 1, got %d", c.jobs)
	}
	ow, oh := c.outWidth, c.outHeight
	if ow == 0 {
		ow = c.width
	}
	if oh == 0 {
		oh = c.height
	}
	in, err := surface.NewLayout(tegradrm.DRM_FORMAT_NV12, uint32(c.width), uint32(c.height))
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	out, err := surface.NewLayout(tegradrm.DRM_FORMAT_ARGB8888, uint32(ow), uint32(oh))
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return &convertJob{in: in, out: out, jobs: c.jobs}, nil
}

// run converts every frame of data. Frames are dealt round robin to j.jobs
// workers, each with its own device and VIC channel.
func (j *convertJob) run(ctx context.Context, conf *config.Config, data []byte) ([]byte, error) {
	inSize := nv12FrameSize(j.in.Width, j.in.Height)
	if len(data) == 0 || len(data)%inSize != 0 {
		return nil, fmt.Errorf("input is %d bytes, not a whole number of %d byte frames", len(data), inSize)
	}
	frames := len(data) / inSize
	workers := min(j.jobs, frames)
	log.Infof("Converting %d frames %dx%d -> %dx%d with %d jobs", frames, j.in.Width, j.in.Height, j.out.Width, j.out.Height, workers)

	unlock, err := lockDevice(conf)
	if err != nil {
		return nil, err
	}
	defer unlock()

	outSize := argbFrameSize(j.out.Width, j.out.Height)
	result := make([]byte, frames*outSize)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			conv, err := j.newConverter(conf)
			if err != nil {
				return fmt.Errorf("job %d: %w", w, err)
			}
			defer conv.close()
			for i := w; i < frames; i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				pixels, err := conv.frame(ctx, conf, i, data[i*inSize:(i+1)*inSize])
				if err != nil {
					return fmt.Errorf("frame %d: %w", i, err)
				}
				copy(result[i*outSize:], pixels)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// converter owns one device, one VIC channel and its surfaces.
type converter struct {
	engine  *vic.Device
	op      vic.Op
	release func()
}

func (j *convertJob) newConverter(conf *config.Config) (*converter, error) {
	dev, err := openDevice(conf)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(func() { dev.Close() })
	defer cu.Clean()

	in, err := surface.Allocate(dev, j.in)
	if err != nil {
		return nil, err
	}
	cu.Add(func() { in.Close() })
	out, err := surface.Allocate(dev, j.out)
	if err != nil {
		return nil, err
	}
	cu.Add(func() { out.Close() })

	engine := vic.New(dev)
	cu.Add(func() { engine.Close() })
	return &converter{
		engine: engine,
		op: vic.Op{
			Output: out,
			Input:  &vic.Input{Surface: in},
		},
		release: cu.Release(),
	}, nil
}

func (c *converter) frame(ctx context.Context, conf *config.Config, index int, frame []byte) ([]byte, error) {
	if err := uploadNV12(c.op.Input.Surface, frame); err != nil {
		return nil, err
	}
	what := fmt.Sprintf("frame %d", index)
	if err := retry(ctx, conf, what, func() error { return c.engine.Run(&c.op) }); err != nil {
		return nil, err
	}
	return downloadARGB(c.op.Output)
}

func (c *converter) close() {
	c.release()
}
