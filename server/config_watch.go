// Copyright (C) 2025 Thinline Dynamic Solutions
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>

package main

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/ini.v1"
)

// WatchConfigFile reloads the runtime-safe settings (debug logging,
// password hash) when the INI file changes on disk, so toggling them
// does not require a restart. Structural settings still need one.
func WatchConfigFile(config *Config) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files rather than writing
	// in place, which drops the watch on the file itself.
	if err := watcher.Add(filepath.Dir(config.GetConfigFilePath())); err != nil {
		watcher.Close()
		return nil, err
	}

	configPath := config.GetConfigFilePath()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != configPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				cfg, err := ini.Load(configPath)
				if err != nil {
					LogDebug("config reload skipped: %v", err)
					continue
				}

				section := cfg.Section("")

				if v, err := section.Key("enable_debug_log").Bool(); err == nil && v != config.EnableDebugLog {
					config.EnableDebugLog = v
					SetDebugLog(v)
					log.Printf("config reloaded: enable_debug_log = %t", v)
				}

				if v := section.Key("password_hash").String(); v != config.PasswordHash {
					config.PasswordHash = v
					log.Printf("config reloaded: upload password updated")
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				LogError("config watcher: %v", err)
			}
		}
	}()

	return watcher, nil
}
