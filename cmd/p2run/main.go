/*
 * P2 - Emulator command-line front end.
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
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/p2dev/command/parser"
	"github.com/rcornwell/p2dev/command/reader"
	config "github.com/rcornwell/p2dev/config/configparser"
	"github.com/rcornwell/p2dev/internal/cog"
	"github.com/rcornwell/p2dev/internal/hub"
	"github.com/rcornwell/p2dev/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "p2.cfg", "Board configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Mirror log output to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if optLogFile != nil && *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, optDebug)))

	board, err := config.ParseFile(*optConfig)
	if err != nil {
		slog.Error("loading board configuration", "err", err)
		os.Exit(1)
	}

	if board.Cogs <= 0 || board.Cogs > hub.NumCogs {
		slog.Error("board COGS out of range", "cogs", board.Cogs, "max", hub.NumCogs)
		os.Exit(1)
	}

	h := hub.New()
	for _, ld := range board.Loads {
		image, err := os.ReadFile(ld.File)
		if err != nil {
			slog.Error("loading image", "file", ld.File, "err", err)
			os.Exit(1)
		}
		h.LoadImage(ld.HubAddr, image)
	}

	cogs := make([]*cog.Cog, board.Cogs)
	for i := range cogs {
		cogs[i] = cog.New(i)
		h.Cogs[i] = cogs[i]
	}
	for _, st := range board.Starts {
		if st.Index < 0 || st.Index >= len(cogs) {
			slog.Error("START names a cog outside the board's cog count", "index", st.Index)
			os.Exit(1)
		}
		cogs[st.Index].Start(st.HubAddr, st.Param)
	}

	slog.Info("board ready", "cogs", board.Cogs, "clock", board.ClockHz)
	reader.ConsoleReader(parser.New(h, cogs))
}
