/*
 * Salis - Runtime configuration loader.
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

// Package config parses the simulation's compile-time-equivalent settings
// from a small line-oriented text file, grounded on configparser's
// tokenizer style but stripped of its device/model registry: Salis has no
// devices, just a flat set of `key value` pairs.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Action picks the engine's initial behavior, matching ACT_BENCH/ACT_LOAD/
// ACT_NEW from the original.
type Action int

const (
	ActionNew Action = iota
	ActionLoad
	ActionBench
)

func (a Action) String() string {
	switch a {
	case ActionNew:
		return "NEW"
	case ActionLoad:
		return "LOAD"
	case ActionBench:
		return "BENCH"
	default:
		return "UNKNOWN"
	}
}

func parseAction(s string) (Action, error) {
	switch strings.ToUpper(s) {
	case "NEW":
		return ActionNew, nil
	case "LOAD":
		return ActionLoad, nil
	case "BENCH":
		return ActionBench, nil
	default:
		return 0, fmt.Errorf("config: unknown action %q", s)
	}
}

// Config carries every item from the original's compile-time configuration
// table, now validated and defaulted at load time instead of at compile
// time.
type Config struct {
	CoreCount        uint64
	MvecSize         uint64
	SyncInterval     uint64
	AncList          []string
	AncClones        uint64
	AncHalf          bool
	Seed             uint64
	MutaRange        uint64
	MutaFlipBit      bool
	AutoSaveInterval uint64
	Action           Action
	SimPath          string
	Debug            bool
}

// Default returns the engine's baseline configuration: a single core, a
// modest memory, and a fresh start with no ancestor.
func Default() Config {
	return Config{
		CoreCount:        1,
		MvecSize:         1 << 16,
		SyncInterval:     1024,
		AncList:          []string{"_"},
		AncClones:        1,
		AncHalf:          false,
		Seed:             0,
		MutaRange:        1 << 20,
		MutaFlipBit:      true,
		AutoSaveInterval: 0,
		Action:           ActionNew,
		SimPath:          "salis",
		Debug:            false,
	}
}

// Validate checks the invariants config.Load's defaults alone cannot
// guarantee (an edited file can still violate them).
func (c Config) Validate() error {
	if c.CoreCount == 0 {
		return errors.New("config: CORE_COUNT must be >= 1")
	}
	if c.MvecSize == 0 {
		return errors.New("config: MVEC_SIZE must be >= 1")
	}
	if c.SyncInterval == 0 {
		return errors.New("config: SYNC_INTERVAL must be >= 1")
	}
	if c.AncClones == 0 {
		return errors.New("config: ANC_CLONES must be >= 1")
	}
	if len(c.AncList) != 0 && uint64(len(c.AncList)) != c.CoreCount {
		return fmt.Errorf("config: ANC_LIST has %d entries, want %d (one per core)", len(c.AncList), c.CoreCount)
	}
	return nil
}

// optionLine tokenizes one line of the config file: a key, whitespace, a
// value, and an optional trailing # comment.
type optionLine struct {
	line string
	pos  int
}

func (l *optionLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *optionLine) isEOL() bool {
	if l.pos >= len(l.line) {
		return true
	}
	return l.line[l.pos] == '#'
}

// getName collects a run of letters/digits/underscores starting at pos.
func (l *optionLine) getName() string {
	start := l.pos
	for l.pos < len(l.line) {
		by := l.line[l.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || by == '_' {
			l.pos++
			continue
		}
		break
	}
	return l.line[start:l.pos]
}

// parseKeyValue splits a non-blank, non-comment line into key and value.
// Returns ok == false for a blank or comment-only line.
func (l *optionLine) parseKeyValue() (key, value string, ok bool, err error) {
	l.skipSpace()
	if l.isEOL() {
		return "", "", false, nil
	}
	if !unicode.IsLetter(rune(l.line[l.pos])) {
		return "", "", false, fmt.Errorf("config: line does not start with a key: %q", l.line)
	}
	key = l.getName()

	l.skipSpace()
	if l.isEOL() {
		return "", "", false, fmt.Errorf("config: key %q has no value", key)
	}

	start := l.pos
	for l.pos < len(l.line) && l.line[l.pos] != '#' {
		l.pos++
	}
	value = strings.TrimSpace(l.line[start:l.pos])
	if value == "" {
		return "", "", false, fmt.Errorf("config: key %q has no value", key)
	}
	return key, value, true, nil
}

// parseSize parses a decimal or hex (0x-prefixed) integer with an optional
// trailing K or M multiplier, e.g. "64K", "0x10000", "4M".
func parseSize(value string) (uint64, error) {
	mult := uint64(1)
	trimmed := value
	if n := len(trimmed); n > 0 {
		switch trimmed[n-1] {
		case 'K', 'k':
			mult = 1 << 10
			trimmed = trimmed[:n-1]
		case 'M', 'm':
			mult = 1 << 20
			trimmed = trimmed[:n-1]
		}
	}
	base := 10
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		base = 16
		trimmed = trimmed[2:]
	}
	n, err := strconv.ParseUint(trimmed, base, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid number %q: %w", value, err)
	}
	return n * mult, nil
}

func parseBool(value string) (bool, error) {
	switch value {
	case "1", "true", "TRUE", "yes", "YES":
		return true, nil
	case "0", "false", "FALSE", "no", "NO":
		return false, nil
	default:
		return false, fmt.Errorf("config: invalid boolean %q", value)
	}
}

// Load reads a config file from r, starting from Default and overwriting
// whichever keys appear, then validates the result.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	listSeen := false

	for scanner.Scan() {
		lineNumber++
		l := &optionLine{line: scanner.Text()}
		key, value, ok, err := l.parseKeyValue()
		if err != nil {
			return Config{}, fmt.Errorf("config: line %d: %w", lineNumber, err)
		}
		if !ok {
			continue
		}

		switch strings.ToUpper(key) {
		case "CORE_COUNT":
			cfg.CoreCount, err = parseSize(value)
		case "MVEC_SIZE":
			cfg.MvecSize, err = parseSize(value)
		case "SYNC_INTERVAL":
			cfg.SyncInterval, err = parseSize(value)
		case "ANC_LIST":
			cfg.AncList = strings.Split(value, ",")
			for i := range cfg.AncList {
				cfg.AncList[i] = strings.TrimSpace(cfg.AncList[i])
			}
			listSeen = true
		case "ANC_CLONES":
			cfg.AncClones, err = parseSize(value)
		case "ANC_HALF":
			cfg.AncHalf, err = parseBool(value)
		case "SEED":
			cfg.Seed, err = parseSize(value)
		case "MUTA_RANGE":
			cfg.MutaRange, err = parseSize(value)
		case "MUTA_FLIP_BIT":
			cfg.MutaFlipBit, err = parseBool(value)
		case "AUTO_SAVE_INTERVAL":
			cfg.AutoSaveInterval, err = parseSize(value)
		case "ACTION":
			cfg.Action, err = parseAction(value)
		case "SIM_PATH":
			cfg.SimPath = value
		case "DEBUG":
			cfg.Debug, err = parseBool(value)
		default:
			err = fmt.Errorf("config: unknown key %q", key)
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, err
	}

	// ANC_LIST defaults to one "_" per core only if the file never set it
	// and CoreCount was also changed; re-stretch the default to match.
	if !listSeen && uint64(len(cfg.AncList)) != cfg.CoreCount {
		list := make([]string, cfg.CoreCount)
		for i := range list {
			list[i] = "_"
		}
		cfg.AncList = list
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile opens name and calls Load.
func LoadFile(name string) (Config, error) {
	f, err := os.Open(name)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Load(f)
}
