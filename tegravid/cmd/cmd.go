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

// Package cmd holds implementations of the tegravid commands.
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"gvisor.dev/tegravid/pkg/drm"
	"gvisor.dev/tegravid/pkg/errors/hwerr"
	"gvisor.dev/tegravid/pkg/log"
	"gvisor.dev/tegravid/tegravid/config"
)

// Fatalf logs the same message to stderr and to the log, then exits with
// status 128.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	log.Warningf("FATAL ERROR: "+format, args...)
	os.Exit(128)
}

// deviceOptions returns the options commands open the device with. Tests
// replace it to run commands against a fake kernel.
var deviceOptions = func(conf *config.Config) drm.Options {
	return conf.DeviceOptions()
}

// lockDevice takes the configured lock file and returns the function that
// releases it.
func lockDevice(conf *config.Config) (func(), error) {
	l := flock.New(conf.LockFile)
	if err := l.Lock(); err != nil {
		return nil, fmt.Errorf("locking %q: %w", conf.LockFile, err)
	}
	log.Debugf("Acquired lock %q", conf.LockFile)
	return func() {
		if err := l.Unlock(); err != nil {
			log.Warningf("Unlocking %q: %v", conf.LockFile, err)
		}
	}, nil
}

func openDevice(conf *config.Config) (*drm.Device, error) {
	return drm.Open(deviceOptions(conf))
}

// retry calls op until it succeeds, fails with an error other than a wait
// timeout, or has been retried conf.Retries times.
func retry(ctx context.Context, conf *config.Config, what string, op func() error) error {
	attempt := 0
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(conf.Retries)), ctx)
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, hwerr.WaitTimeout) {
			return &backoff.PermanentError{Err: err}
		}
		log.Warningf("%s timed out (attempt %d of %d): %v", what, attempt, conf.Retries+1, err)
		return err
	}, b)
}
