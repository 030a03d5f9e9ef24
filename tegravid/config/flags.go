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

package config

import (
	"flag"
	"fmt"
	"reflect"

	"github.com/BurntSushi/toml"
	"gvisor.dev/tegravid/pkg/drm"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file with default values for these flags. Flags given on the command line take precedence.")

	// Device flags.
	flagSet.String("drm-device", drm.DefaultDRMPath, "Tegra DRM device node.")
	flagSet.String("host1x-device", drm.DefaultHost1xPath, "host1x syncpoint device node, used by the host1x protocol.")
	flagSet.String("soc-id", drm.DefaultSocIDPath, "file identifying the SoC.")
	protocol := drm.ProtocolAuto
	flagSet.Var(&protocol, "protocol", "kernel interface: auto (default), legacy, host1x. auto prefers host1x and falls back to legacy when /dev/host1x is missing.")

	// Debugging flags.
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default), json, or json-k8s.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("debug-log", "", "additional location for debug logs. The following variables are available: %TIMESTAMP%, %COMMAND%, %PID%.")

	// Flags that control engine use.
	flagSet.String("lock-file", defaultLockFile(), "file locked while the device is in use, to serialize tegravid processes.")
	flagSet.Int("retries", 3, "number of times a frame that timed out is resubmitted.")
}

func getFlag(fl *flag.Flag) reflect.Value {
	return reflect.ValueOf(fl.Value.(flag.Getter).Get())
}

// NewFromFlags creates a new Config with values coming from command line
// flags and, if --config is set, the configuration file it names.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	conf.fields(func(name string, v reflect.Value) {
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		v.Set(getFlag(fl))
	})

	if conf.ConfigFile != "" {
		if _, err := toml.DecodeFile(conf.ConfigFile, conf); err != nil {
			return nil, fmt.Errorf("error loading config file %q: %w", conf.ConfigFile, err)
		}
		set := map[string]bool{}
		flagSet.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
		conf.fields(func(name string, v reflect.Value) {
			if set[name] {
				v.Set(getFlag(flagSet.Lookup(name)))
			}
		})
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
