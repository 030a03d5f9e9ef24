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
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/tegravid/pkg/abi/tegradrm"
	"gvisor.dev/tegravid/pkg/engine/vic"
	"gvisor.dev/tegravid/pkg/log"
	"gvisor.dev/tegravid/pkg/surface"
	"gvisor.dev/tegravid/tegravid/config"
)

// colour is a flag.Value holding "r,g,b" with components in [0, 1].
type colour [3]float32

// String implements flag.Value.
func (c *colour) String() string {
	return fmt.Sprintf("%g,%g,%g", c[0], c[1], c[2])
}

// Set implements flag.Value.
func (c *colour) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fmt.Errorf("colour %q must have three components", s)
	}
	var v colour
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("colour component %q: %w", p, err)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("colour component %g out of range [0, 1]", f)
		}
		v[i] = float32(f)
	}
	*c = v
	return nil
}

// Clear implements subcommands.Command for the "clear" command.
type Clear struct {
	width  uint
	height uint
	colour colour
	output string
}

// Name implements subcommands.Command.Name.
func (*Clear) Name() string {
	return "clear"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Clear) Synopsis() string {
	return "fill an ARGB surface with a colour using VIC"
}

// Usage implements subcommands.Command.Usage.
func (*Clear) Usage() string {
	return `clear [flags] - fill an ARGB8888 surface with a solid colour.

With -output, the result is written to the file as packed ARGB8888 rows.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Clear) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.width, "width", 640, "surface width in pixels.")
	f.UintVar(&c.height, "height", 480, "surface height in pixels.")
	f.Var(&c.colour, "colour", "fill colour as r,g,b with components in [0, 1].")
	f.StringVar(&c.output, "output", "", "file to write the surface contents to.")
}

// Execute implements subcommands.Command.Execute.
func (c *Clear) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	pixels, err := clearFrame(ctx, conf, uint32(c.width), uint32(c.height), c.colour)
	if err != nil {
		Fatalf("clearing surface: %v", err)
	}
	if c.output != "" {
		if err := os.WriteFile(c.output, pixels, 0644); err != nil {
			Fatalf("writing %q: %v", c.output, err)
		}
	}
	return subcommands.ExitSuccess
}

// clearFrame fills a new width x height ARGB surface with col and returns
// its packed contents.
func clearFrame(ctx context.Context, conf *config.Config, width, height uint32, col colour) ([]byte, error) {
	layout, err := surface.NewLayout(tegradrm.DRM_FORMAT_ARGB8888, width, height)
	if err != nil {
		return nil, err
	}

	unlock, err := lockDevice(conf)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dev, err := openDevice(conf)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	out, err := surface.Allocate(dev, layout)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	engine := vic.New(dev)
	defer engine.Close()
	op := &vic.Op{
		Output: out,
		ClearR: col[0],
		ClearG: col[1],
		ClearB: col[2],
	}
	if err := retry(ctx, conf, "clear", func() error { return engine.Run(op) }); err != nil {
		return nil, err
	}
	log.Infof("Cleared %dx%d surface to %v", width, height, col.String())
	return downloadARGB(out)
}
