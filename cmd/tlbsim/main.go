/*
 * tlbcoat - TLB simulator REPL entry point
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
	"bufio"
	"io"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/archsec/tlbcoat/config/tlbconfig"
	"github.com/archsec/tlbcoat/tlb"
	"github.com/archsec/tlbcoat/util/debug"
	"github.com/archsec/tlbcoat/util/logger"
)

var log *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration line (e.g. \"TLB ways=4,sets=16,variant=asid\")")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optTrace := getopt.BoolLong("trace", 't', "Enable component trace output")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var logWriter io.Writer
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err != nil {
			os.Stderr.WriteString("tlbsim: cannot create log file: " + err.Error() + "\n")
			os.Exit(1)
		}
		logWriter = f
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	if *optTrace {
		programLevel.Set(slog.LevelDebug)
	}
	log = slog.New(logger.New(logWriter, programLevel, *optTrace))
	slog.SetDefault(log)

	debug.Enable(*optTrace)

	configLine := *optConfig
	if configLine == "" {
		configLine = "TLB"
	}

	res, err := tlbconfig.ParseLine(configLine)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	if res.Config.Sets == 0 {
		// A bare comment/blank line; fall back to the documented default.
		res, _ = tlbconfig.ParseLine("TLB")
	}
	if res.LogPath != "" && logWriter == nil {
		f, err := os.Create(res.LogPath)
		if err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
		log = slog.New(logger.New(f, programLevel, *optTrace))
		slog.SetDefault(log)
	}

	cache, err := tlbconfig.NewCache(res)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	log.Info("tlbsim started", "sets", res.Config.Sets, "ways", res.Config.Ways, "variant", res.Variant)

	runREPL(cache, os.Stdin, os.Stdout)
}

// runREPL drives the interactive command loop. It takes explicit reader
// input only so tests can exercise it without a terminal; the liner-backed
// path (used from main) lives in repl.go's Run.
func runREPL(cache tlb.Cache, in *os.File, out *os.File) {
	if in == os.Stdin {
		Run(cache)
		return
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		quit, err := processCommand(scanner.Text(), cache)
		if err != nil {
			out.WriteString("Error: " + err.Error() + "\n")
		}
		if quit {
			return
		}
	}
}
