/*
 * Salis - Minimal host: load a config, run the engine, save on exit.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Command salis is a minimal host for the engine: it loads a config file,
// builds or restores an Engine, and steps it until interrupted. It is not
// a design surface — CLI argument parsing is an explicit Non-goal of the
// engine itself (spec.md §1) — so it stays thin and uses the standard
// `flag` package rather than getopt.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	v1 "github.com/pauloliver/salis/arch/v1"
	"github.com/pauloliver/salis/config"
	"github.com/pauloliver/salis/engine"
	"github.com/pauloliver/salis/internal/salog"
)

func main() {
	optConfig := flag.String("config", "salis.cfg", "configuration file")
	optLogFile := flag.String("log", "", "log file (stderr only if empty)")
	flag.Parse()

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "salis: cannot create log file:", err)
			os.Exit(1)
		}
	}

	cfg, err := config.LoadFile(*optConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, "salis:", err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	if cfg.Debug {
		level.Set(slog.LevelDebug)
	}
	handler := salog.NewHandler(file, &slog.HandlerOptions{Level: level}, cfg.Debug)
	slog.SetDefault(slog.New(handler))
	defer handler.Flush()

	arch := v1.New()

	var e *engine.Engine
	switch cfg.Action {
	case config.ActionLoad:
		e, err = engine.LoadFile(cfg, arch)
	default:
		e, err = engine.New(cfg, arch)
	}
	if err != nil {
		slog.Error("salis: failed to start engine", "error", err)
		os.Exit(1)
	}

	slog.Info("salis started", "cores", cfg.CoreCount, "mvec_size", cfg.MvecSize, "action", cfg.Action.String())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	running := true
	for running {
		select {
		case <-stop:
			running = false
		default:
			e.Step(cfg.SyncInterval)
		}
	}

	slog.Info("salis stopping, saving snapshot", "steps", e.Steps)
	if err := e.Save(cfg.SimPath); err != nil {
		slog.Error("salis: failed to save snapshot", "error", err)
		os.Exit(1)
	}
}
