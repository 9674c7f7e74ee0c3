/*
NAME
  config.go

DESCRIPTION
  config.go defines the configuration accepted by cmd/okdtool: which
  subcommand behavior to apply, where to read/write files, and how to
  log, in the style of revid/config.Config.

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

// Package config holds the configuration settings for okdtool.
package config

import (
	"github.com/pkg/errors"

	"github.com/ausocean/utils/logging"
)

// Config provides parameters relevant to one okdtool invocation. Zero
// values are valid except where noted in Validate.
type Config struct {
	// InputPath is the OKD/MTF/SMF file to read. Required.
	InputPath string

	// OutputPath is where the converted/re-encoded output is written.
	// Required.
	OutputPath string

	// Scramble requests the byte-scramble obfuscation be applied when
	// writing an OKD file. Ignored by subcommands that don't write OKD.
	Scramble bool

	// ForceFlag skips SPRC CRC-16/GENIBUS validation on read, matching
	// the reference implementation's force_flag override.
	ForceFlag bool

	// SysexToText additionally emits every SysEx message translated by
	// the virtual MMT-TG as a text meta event, for okd2mid.
	SysexToText bool

	// LogFile is an optional rotating log file path; empty disables
	// file logging and logs to stderr only.
	LogFile string

	// Logger holds an implementation of the Logger interface used
	// throughout this module.
	Logger logging.Logger
}

// Validate checks for missing required fields and returns an error for
// the first one it finds missing. It sets no defaults and logs nothing.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("config: input path is required")
	}
	if c.OutputPath == "" {
		return errors.New("config: output path is required")
	}
	if c.Logger == nil {
		return errors.New("config: logger is required")
	}
	return nil
}
