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

// Package config holds the tegravid configuration: command line flags, an
// optional TOML file, and the device options derived from them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/log"
)

// Config holds configuration that is not part of an individual command.
//
// Fields with a flag tag are populated from the flag of that name; fields
// with a toml tag may also come from the configuration file. Flags given on
// the command line take precedence over the file.
type Config struct {
	// ConfigFile is the path of a TOML file with default values.
	ConfigFile string `flag:"config" toml:"-"`

	// DRMDevice is the Tegra DRM device node.
	DRMDevice string `flag:"drm-device" toml:"drm_device"`

	// Host1xDevice is the host1x syncpoint device node, used by the unified
	// protocol.
	Host1xDevice string `flag:"host1x-device" toml:"host1x_device"`

	// SocIDFile identifies the SoC.
	SocIDFile string `flag:"soc-id" toml:"soc_id"`

	// Protocol selects the kernel interface.
	Protocol drm.Protocol `flag:"protocol" toml:"protocol"`

	// LogFilename is the file internal logs are written to. Empty means
	// stderr.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format: text, json or json-k8s.
	LogFormat string `flag:"log-format" toml:"log_format"`

	// Debug enables debug logging.
	Debug bool `flag:"debug" toml:"debug"`

	// DebugLog is an additional location for debug logs. %COMMAND%,
	// %TIMESTAMP% and %PID% are expanded.
	DebugLog string `flag:"debug-log" toml:"debug_log"`

	// LockFile serializes engine use across tegravid processes.
	LockFile string `flag:"lock-file" toml:"lock_file"`

	// Retries is how many times a frame that timed out is resubmitted.
	Retries int `flag:"retries" toml:"retries"`
}

// DeviceOptions returns the options to open the device with.
func (c *Config) DeviceOptions() drm.Options {
	return drm.Options{
		DRMPath:    c.DRMDevice,
		Host1xPath: c.Host1xDevice,
		SocIDPath:  c.SocIDFile,
		Protocol:   c.Protocol,
	}
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json", "json-k8s":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json' or 'json-k8s'", c.LogFormat)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be non-negative, got %d", c.Retries)
	}
	if c.LockFile == "" {
		return fmt.Errorf("lock file must be set")
	}
	return nil
}

// Log logs important aspects of the configuration.
func (c *Config) Log() {
	log.Infof("Config.DRMDevice: %s", c.DRMDevice)
	log.Infof("Config.Host1xDevice: %s", c.Host1xDevice)
	log.Infof("Config.SocIDFile: %s", c.SocIDFile)
	log.Infof("Config.Protocol: %s", c.Protocol)
	log.Infof("Config.LockFile: %s", c.LockFile)
	log.Infof("Config.Retries: %d", c.Retries)
	if c.ConfigFile != "" {
		log.Infof("Config.ConfigFile: %s", c.ConfigFile)
	}
}

func defaultLockFile() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "tegravid.lock")
	}
	return filepath.Join(os.TempDir(), "tegravid.lock")
}

// fields calls fn for every field of c with a flag tag.
func (c *Config) fields(fn func(name string, v reflect.Value)) {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		fn(name, obj.Field(i))
	}
}
