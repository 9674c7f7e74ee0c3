/*
NAME
  main.go

DESCRIPTION
  okdtool is a thin command-line wrapper around the OKD/MTF codec and
  MIDI conversion packages, in the style of the teacher's cmd/looper
  and cmd/rv tools: flag-parsed subcommands, a lumberjack-backed
  rotating logger, and otherwise no logic beyond wiring.

  Subcommands:
    read    <in.okd> <out>           parse an OKD file and log a summary (<out> is required but unused)
    write   <in.okd> <out.okd>       round-trip an OKD file (optionally re-scrambling)
    okd2mid <in.okd> <out.mid>       convert an OKD file to a Standard MIDI File
    mid2okd <in.mid> <out-prefix>    convert a Standard MIDI File to OKD ("-playing.okd", "-p3.okd")

AUTHOR
  Xi80 <xi80@dam-song-tools-oss>

LICENSE
  Copyright (C) 2026 the dam-song-tools-oss authors. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the dam-song-tools-oss authors.
*/

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ausocean/utils/logging"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/Xi80/dam-song-tools-oss/config"
	"github.com/Xi80/dam-song-tools-oss/container/okd"
	"github.com/Xi80/dam-song-tools-oss/container/okd/header"
	"github.com/Xi80/dam-song-tools-oss/convert"
	"github.com/Xi80/dam-song-tools-oss/smf"
)

// Logging configuration, matching the teacher's cmd/speaker defaults.
const (
	logMaxSize   = 10 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = false
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	scramble := fs.Bool("scramble", false, "scramble the OKD output")
	force := fs.Bool("force", false, "skip SPRC CRC-16/GENIBUS validation on read")
	sysexToText := fs.Bool("sysex-text", false, "also emit a text meta event for every SysEx message translated by the MMT-TG")
	logFile := fs.String("log-file", "", "optional rotating log file path")
	fs.Parse(os.Args[2:])

	args := fs.Args()
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.Config{
		InputPath:   args[0],
		OutputPath:  args[1],
		Scramble:    *scramble,
		ForceFlag:   *force,
		SysexToText: *sysexToText,
		LogFile:     *logFile,
		Logger:      newLogger(*logFile),
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "read":
		err = cmdRead(cfg)
	case "write":
		err = cmdWrite(cfg)
	case "okd2mid":
		err = cmdOkdToMidi(cfg)
	case "mid2okd":
		err = cmdMidiToOkd(cfg)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		cfg.Logger.Error("okdtool: command failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: okdtool <read|write|okd2mid|mid2okd> [flags] <input> <output>")
}

func newLogger(logFile string) logging.Logger {
	if logFile == "" {
		return logging.New(logVerbosity, os.Stderr, logSuppress)
	}
	fileLog := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	return logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)
}

func openOkd(cfg config.Config) (*okd.File, error) {
	f, err := os.Open(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var opts []okd.ReadOption
	if cfg.ForceFlag {
		opts = append(opts, okd.WithForce())
	}
	of, err := okd.Read(f, opts...)
	if err != nil {
		return nil, err
	}
	of.SetLogger(cfg.Logger)
	return of, nil
}

func cmdRead(cfg config.Config) error {
	of, err := openOkd(cfg)
	if err != nil {
		return err
	}
	cfg.Logger.Info("okdtool: parsed OKD file", "chunks", len(of.Chunks))
	for _, c := range of.Chunks {
		g := c.Generic()
		cfg.Logger.Info("chunk", "id", string(g.ID[:]), "bytes", len(g.Payload))
	}
	return nil
}

func cmdWrite(cfg config.Config) error {
	of, err := openOkd(cfg)
	if err != nil {
		return err
	}

	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return of.Write(out, cfg.Scramble)
}

func cmdOkdToMidi(cfg config.Config) error {
	of, err := openOkd(cfg)
	if err != nil {
		return err
	}

	midi, err := convert.OkdToMidi(of, cfg.SysexToText, cfg.Logger)
	if err != nil {
		return err
	}

	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return smf.Write(out, midi)
}

func cmdMidiToOkd(cfg config.Config) error {
	in, err := os.Open(cfg.InputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	midi, err := smf.Read(in)
	if err != nil {
		return err
	}

	h := &header.YKS{Common: header.Common{Version: "YKS-1   v6.0v110"}}
	playing, p3, err := convert.MidiToOkds(midi, h)
	if err != nil {
		return err
	}

	playingOut, err := os.Create(cfg.OutputPath + "-playing.okd")
	if err != nil {
		return err
	}
	defer playingOut.Close()
	if err := playing.Write(playingOut, cfg.Scramble); err != nil {
		return err
	}

	p3Out, err := os.Create(cfg.OutputPath + "-p3.okd")
	if err != nil {
		return err
	}
	defer p3Out.Close()
	return p3.Write(p3Out, cfg.Scramble)
}
