/**
 * Copyright 2020 Appvia Ltd <info@appvia.io>
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package h2c

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/helmfile2compose/h2c-core/internal/log"
)

// Watch re-runs Run every time a file under opts.InputDir (or, when set,
// opts.ExtensionsDir) changes, printing a summary after each cycle. It
// blocks until the process receives an interrupt or term signal, mirroring
// the teacher's DevRunner.Watch/DevRunner.Run dev-loop pair: a buffered
// change channel fed by an fsnotify watcher goroutine, drained by a loop
// that collapses a burst of writes into a single re-render.
func Watch(opts Options, onResult func(*Result, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addTreeToWatcher(watcher, opts.InputDir); err != nil {
		return err
	}
	if opts.ExtensionsDir != "" {
		if err := addTreeToWatcher(watcher, opts.ExtensionsDir); err != nil {
			return err
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	change := make(chan string, 50)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
					change <- event.Name
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error(err)
			}
		}
	}()

	log.Info("watching for manifest changes - press Ctrl+C to stop")

	result, err := Run(opts)
	onResult(result, err)

	for {
		select {
		case <-signals:
			return nil
		case name := <-change:
			// drain the rest of the burst so a save-all in an editor
			// collapses into one re-render, not one per file.
			draining := true
			for draining {
				select {
				case <-change:
				default:
					draining = false
				}
			}
			log.InfoWithFields(log.Fields{"file": name}, "change detected, re-running conversion")
			result, err := Run(opts)
			onResult(result, err)
		}
	}
}

// addTreeToWatcher registers dir and every subdirectory under it with the
// watcher. fsnotify does not watch recursively on its own, so each
// directory needs its own explicit Add, the same approach as the
// teacher's Watch which adds every source file path it discovers.
func addTreeToWatcher(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
