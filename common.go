// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable parts of ifv application and subcommand infrastructure.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Commander interface should be implemented by commands and sub-commands.
type Commander interface {
	Run([]string) error
	Name() string
	Help()
}

// AppError a custom error returned from CLI application.
//
// AppError is handy error type envisioned to be used in CLI's main.
// ExitCode() should be used as argument for os.Exit().
type AppError struct {
	msg      string
	exitCode int
}

// Error implements error interface for AppError.
func (e *AppError) Error() string {
	return e.msg
}

// ExitCode returns CLI application's exit code.
func (e *AppError) ExitCode() int {
	return e.exitCode
}

// printSubCommandUsage helper to format ad print subcommand's usage.
func printSubCommandUsage(longHelp string, fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage of sub-command %s:\n\n", fs.Name())
	fmt.Fprintf(fs.Output(), "%s\n\n", longHelp)
	fs.PrintDefaults()
}

// fileExists will check if given path exists and is a regular file.
func fileExists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}

// videoExtensions lists container extensions considered for directory scans.
// An explicitly named input file bypasses this filter, format support is then
// decided at decode time.
var videoExtensions = map[string]bool{
	".avi":  true,
	".flv":  true,
	".m4v":  true,
	".mkv":  true,
	".mov":  true,
	".mp4":  true,
	".mpeg": true,
	".mpg":  true,
	".webm": true,
	".wmv":  true,
}

func hasVideoExtension(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// findVideos resolves the -i argument into a list of video file paths.
//
// A regular file is returned as-is. For a directory, entries with a known
// video extension are collected, descending into subdirectories only when
// recursive is set. Results are sorted for a stable processing order.
func findVideos(input string, recursive bool) ([]string, error) {
	fi, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input not accessible: %w", err)
	}

	if fi.Mode().IsRegular() {
		return []string{input}, nil
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("input is neither a file nor a directory: %s", input)
	}

	var videos []string
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != input {
				return filepath.SkipDir
			}
			return nil
		}
		if hasVideoExtension(path) {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", input, err)
	}

	sort.Strings(videos)
	return videos, nil
}
