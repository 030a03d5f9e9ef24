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
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/tegravid/config"
)

// Probe implements subcommands.Command for the "probe" command.
type Probe struct {
	format string
}

// Name implements subcommands.Command.Name.
func (*Probe) Name() string {
	return "probe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Probe) Synopsis() string {
	return "print the detected platform, VIC revision and kernel protocol"
}

// Usage implements subcommands.Command.Usage.
func (*Probe) Usage() string {
	return `probe [flags] - open the video device and describe it.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Probe) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.format, "format", "text", "output format: text or json.")
}

// ProbeResult describes an opened device.
type ProbeResult struct {
	Platform string `json:"platform"`
	VIC      string `json:"vic"`
	Protocol string `json:"protocol"`
}

// Execute implements subcommands.Command.Execute.
func (p *Probe) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	res, err := probe(conf)
	if err != nil {
		Fatalf("probing device: %v", err)
	}
	if err := res.write(os.Stdout, p.format); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func probe(conf *config.Config) (ProbeResult, error) {
	unlock, err := lockDevice(conf)
	if err != nil {
		return ProbeResult{}, err
	}
	defer unlock()

	dev, err := openDevice(conf)
	if err != nil {
		return ProbeResult{}, err
	}
	defer dev.Close()
	return describe(dev), nil
}

func describe(dev *drm.Device) ProbeResult {
	return ProbeResult{
		Platform: dev.Platform().String(),
		VIC:      dev.Platform().VICVersion().String(),
		Protocol: dev.Generation().String(),
	}
}

func (r ProbeResult) write(w io.Writer, format string) error {
	switch format {
	case "text":
		_, err := fmt.Fprintf(w, "platform: %s\nvic: %s\nprotocol: %s\n", r.Platform, r.VIC, r.Protocol)
		return err
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling probe result: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	default:
		return fmt.Errorf("invalid format %q, must be 'text' or 'json'", format)
	}
}
