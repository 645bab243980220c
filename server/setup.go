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
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// RunSetupTasks handles one-shot administrative flags before the
// server starts. Exits the process when a task was requested.
func RunSetupTasks(config *Config) {
	if !config.setPassword {
		return
	}

	password, err := promptPassword("New upload API password: ")
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(-1)
	}

	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(-1)
	}

	if password != confirm {
		fmt.Println("passwords do not match")
		os.Exit(-1)
	}

	if len(password) < 8 {
		fmt.Println("password must be at least 8 characters")
		os.Exit(-1)
	}

	hash, err := HashPassword(password)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(-1)
	}

	if err := config.SetPasswordHash(hash); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(-1)
	}

	fmt.Println("upload API password updated")
	os.Exit(0)
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(password)), nil
}

// CheckFFmpeg verifies ffmpeg and ffprobe are installed; the whole
// preprocessing pipeline shells out to them
func CheckFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH. Please install ffmpeg with libopus support")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return fmt.Errorf("ffprobe not found in PATH. Please install ffmpeg with libopus support")
	}
	return nil
}
