/*
 * tlbcoat - Interactive command loop for the TLB simulator
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

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/archsec/tlbcoat/tlb"
)

// cmd mirrors the full simulator's command-table idiom: a name, a
// shortest-unique-prefix length, and a handler. Scaled down from a dozen
// IBM-370 operator commands to the five operations this model exposes.
type cmd struct {
	name    string
	min     int
	process func([]string, tlb.Cache) (bool, error)
}

var cmdList = []cmd{
	{name: "lookup", min: 2, process: cmdLookup},
	{name: "insert", min: 2, process: cmdInsert},
	{name: "demap", min: 2, process: cmdDemap},
	{name: "demapall", min: 5, process: cmdDemapAll},
	{name: "flush", min: 2, process: cmdFlush},
	{name: "flushnonglobal", min: 6, process: cmdFlushNonGlobal},
	{name: "stats", min: 2, process: cmdStats},
	{name: "help", min: 1, process: cmdHelp},
	{name: "quit", min: 1, process: cmdQuit},
}

func matchCommand(name string) []cmd {
	name = strings.ToLower(name)
	var exact *cmd
	var prefix []cmd
	for i := range cmdList {
		c := &cmdList[i]
		if c.name == name {
			exact = c
			continue
		}
		if len(name) >= c.min && strings.HasPrefix(c.name, name) {
			prefix = append(prefix, *c)
		}
	}
	if exact != nil {
		return []cmd{*exact}
	}
	return prefix
}

// processCommand parses and executes one command line against cache. It
// returns quit=true when the REPL should stop.
func processCommand(line string, cache tlb.Cache) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	matches := matchCommand(fields[0])
	switch len(matches) {
	case 0:
		return false, fmt.Errorf("command not found: %s", fields[0])
	case 1:
		return matches[0].process(fields[1:], cache)
	default:
		return false, fmt.Errorf("ambiguous command: %s", fields[0])
	}
}

func parseUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

func parseLogBytes(s string) (uint8, error) {
	switch strings.ToLower(s) {
	case "4k", "4kb", "12":
		return tlb.PageBits4K, nil
	case "2m", "2mb", "21":
		return tlb.PageBits2M, nil
	default:
		return 0, fmt.Errorf("unknown page size %q (want 4k or 2m)", s)
	}
}

func cmdLookup(args []string, cache tlb.Cache) (bool, error) {
	if len(args) < 1 {
		return false, errors.New("usage: lookup <va> [asid]")
	}
	va, err := parseUint64(args[0])
	if err != nil {
		return false, fmt.Errorf("bad address: %w", err)
	}
	var asid uint64
	if len(args) > 1 {
		asid, err = strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return false, fmt.Errorf("bad asid: %w", err)
		}
	}
	entry, ok := cache.Lookup(va, uint16(asid))
	if !ok {
		fmt.Println("miss")
		return false, nil
	}
	fmt.Printf("hit: vaddr=%#x asid=%d logBytes=%d global=%v lruSeq=%d\n",
		entry.VAddr, entry.ASID, entry.LogBytes, entry.Global, entry.LRUSeq)
	return false, nil
}

func cmdInsert(args []string, cache tlb.Cache) (bool, error) {
	if len(args) < 2 {
		return false, errors.New("usage: insert <vpn> <logBytes:4k|2m> [asid] [global] [lruSeq]")
	}
	vpn, err := parseUint64(args[0])
	if err != nil {
		return false, fmt.Errorf("bad address: %w", err)
	}
	logBytes, err := parseLogBytes(args[1])
	if err != nil {
		return false, err
	}
	var entry tlb.Entry
	entry.LogBytes = logBytes
	if len(args) > 2 {
		asid, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			return false, fmt.Errorf("bad asid: %w", err)
		}
		entry.ASID = uint16(asid)
	}
	if len(args) > 3 {
		global, err := strconv.ParseBool(args[3])
		if err != nil {
			return false, fmt.Errorf("bad global flag: %w", err)
		}
		entry.Global = global
	}
	if len(args) > 4 {
		seq, err := strconv.ParseUint(args[4], 10, 32)
		if err != nil {
			return false, fmt.Errorf("bad lruSeq: %w", err)
		}
		entry.LRUSeq = uint32(seq)
	}
	placed := cache.Insert(vpn, entry)
	fmt.Printf("inserted: vaddr=%#x asid=%d logBytes=%d\n", placed.VAddr, placed.ASID, placed.LogBytes)
	return false, nil
}

func cmdDemap(args []string, cache tlb.Cache) (bool, error) {
	if len(args) < 1 {
		return false, errors.New("usage: demap <va> [asid]")
	}
	va, err := parseUint64(args[0])
	if err != nil {
		return false, fmt.Errorf("bad address: %w", err)
	}
	var asid uint64
	if len(args) > 1 {
		asid, err = strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return false, fmt.Errorf("bad asid: %w", err)
		}
	}
	cache.DemapPage(va, uint16(asid))
	return false, nil
}

func cmdDemapAll(args []string, cache tlb.Cache) (bool, error) {
	var va, asid uint64
	var err error
	if len(args) > 0 {
		va, err = parseUint64(args[0])
		if err != nil {
			return false, fmt.Errorf("bad address: %w", err)
		}
	}
	if len(args) > 1 {
		asid, err = strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return false, fmt.Errorf("bad asid: %w", err)
		}
	}
	cache.DemapPageComplex(va, uint16(asid))
	return false, nil
}

func cmdFlush(_ []string, cache tlb.Cache) (bool, error) {
	cache.FlushAll()
	return false, nil
}

func cmdFlushNonGlobal(_ []string, cache tlb.Cache) (bool, error) {
	cache.FlushNonGlobal()
	return false, nil
}

func cmdStats(_ []string, cache tlb.Cache) (bool, error) {
	fmt.Printf("rerandRequests=%d\n", cache.RerandRequests())
	return false, nil
}

func cmdHelp(_ []string, _ tlb.Cache) (bool, error) {
	fmt.Println("commands: lookup, insert, demap, demapall, flush, flushnonglobal, stats, quit")
	return false, nil
}

func cmdQuit(_ []string, _ tlb.Cache) (bool, error) {
	return true, nil
}

// Run drives the liner-backed interactive loop, the REPL counterpart of
// the full simulator's console reader: a readline-style prompt with
// history, dispatching each line to the command table above.
func Run(cache tlb.Cache) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		var out []string
		for _, c := range cmdList {
			if strings.HasPrefix(c.name, strings.ToLower(partial)) {
				out = append(out, c.name)
			}
		}
		return out
	})

	for {
		input, err := line.Prompt("tlbsim> ")
		if err == nil {
			line.AppendHistory(input)
			quit, cmdErr := processCommand(input, cache)
			if cmdErr != nil {
				fmt.Println("Error: " + cmdErr.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("error reading line: " + err.Error())
		return
	}
}
