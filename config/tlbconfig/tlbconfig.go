/*
 * tlbcoat - Configuration file parser for the TLB model
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

// Package tlbconfig parses the small, line-oriented configuration format
// cmd/tlbsim reads at startup to build a tlb.Cache. It is a purpose-built
// descendant of the full simulator's multi-device configuration language:
// same scanner idiom (skip whitespace, collect a bare word or a key=value
// pair, comma-separated options), cut down to the single configurable
// subsystem this model has.
//
// Grammar:
//
//	<line>    := 'TLB' [<ws> <option> *(',' <option>)] ['#' <comment>] | '#' <comment> | ''
//	<option>  := <key> '=' <value>
//	<key>     := 'sets' | 'ways' | 'key' | 'variant' | 'mode' | 'log'
//	<value>   := <decimal> | <hex> | <word> | <path>
package tlbconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/archsec/tlbcoat/tlb"
)

// Variant selects which Cache constructor a parsed line builds.
type Variant int

const (
	// VariantASID builds tlb.NewASIDCache (the default).
	VariantASID Variant = iota
	// VariantGlobal builds tlb.NewGlobalCache.
	VariantGlobal
)

// Result is everything a config line resolved to: the cache variant and
// geometry, plus an optional trace log path ("" if not given).
type Result struct {
	Variant Variant
	Config  tlb.Config
	LogPath string
}

// defaultConfig is the standard geometry: 16 sets, 4 ways, skewed placement.
func defaultConfig() tlb.Config {
	return tlb.Config{Sets: 16, Ways: 4, Mode: tlb.ModeSkewed}
}

// line tracks scan position the same way the full simulator's
// configuration scanner does, trimmed down to this format's needs.
type line struct {
	text string
	pos  int
}

func (l *line) skipSpace() {
	for l.pos < len(l.text) && (l.text[l.pos] == ' ' || l.text[l.pos] == '\t') {
		l.pos++
	}
}

func (l *line) isEOL() bool {
	return l.pos >= len(l.text) || l.text[l.pos] == '#'
}

// word reads up to the next delimiter (space, comma, or EOL) without
// consuming it.
func (l *line) word() string {
	start := l.pos
	for l.pos < len(l.text) {
		c := l.text[l.pos]
		if c == ' ' || c == '\t' || c == ',' || c == '#' {
			break
		}
		l.pos++
	}
	return l.text[start:l.pos]
}

// ParseLine parses one configuration line into a Result. Blank lines and
// comment-only lines ("#..." or an empty line) return a zero Result and a
// nil error with Result.Config.Sets == 0, signaling "nothing to build" to
// the caller.
func ParseLine(text string) (Result, error) {
	l := &line{text: text}
	l.skipSpace()
	if l.isEOL() {
		return Result{}, nil
	}

	keyword := l.word()
	if !strings.EqualFold(keyword, "TLB") {
		return Result{}, fmt.Errorf("tlbconfig: unknown directive %q", keyword)
	}
	l.skipSpace()

	res := Result{Config: defaultConfig()}
	if l.isEOL() {
		return res, nil
	}

	for {
		opt := l.word()
		if opt == "" {
			return Result{}, fmt.Errorf("tlbconfig: expected option, found %q", text[l.pos:])
		}
		if err := applyOption(&res, opt); err != nil {
			return Result{}, err
		}

		l.skipSpace()
		if l.isEOL() {
			break
		}
		if l.text[l.pos] != ',' {
			return Result{}, fmt.Errorf("tlbconfig: expected ',' between options, found %q", text[l.pos:])
		}
		l.pos++
		l.skipSpace()
	}

	return res, nil
}

func applyOption(res *Result, opt string) error {
	key, value, ok := strings.Cut(opt, "=")
	if !ok {
		return fmt.Errorf("tlbconfig: option %q missing '='", opt)
	}
	key = strings.ToLower(key)

	switch key {
	case "sets":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return fmt.Errorf("tlbconfig: bad sets value %q: %w", value, err)
		}
		res.Config.Sets = uint8(n)
	case "ways":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return fmt.Errorf("tlbconfig: bad ways value %q: %w", value, err)
		}
		res.Config.Ways = uint8(n)
	case "key":
		n, err := strconv.ParseUint(value, 16, 64)
		if err != nil {
			return fmt.Errorf("tlbconfig: bad key value %q: %w", value, err)
		}
		res.Config.Key = n
	case "variant":
		switch strings.ToLower(value) {
		case "asid":
			res.Variant = VariantASID
		case "global":
			res.Variant = VariantGlobal
		default:
			return fmt.Errorf("tlbconfig: unknown variant %q (want asid or global)", value)
		}
	case "mode":
		switch strings.ToLower(value) {
		case "skewed":
			res.Config.Mode = tlb.ModeSkewed
		case "direct":
			res.Config.Mode = tlb.ModeDirect
		default:
			return fmt.Errorf("tlbconfig: unknown mode %q (want skewed or direct)", value)
		}
	case "log":
		res.LogPath = value
	default:
		return fmt.Errorf("tlbconfig: unknown option %q", key)
	}
	return nil
}

// NewCache builds the Cache a Result describes.
func NewCache(res Result) (tlb.Cache, error) {
	if res.Variant == VariantGlobal {
		return tlb.NewGlobalCache(res.Config)
	}
	return tlb.NewASIDCache(res.Config)
}
