/*
 * P2 - Assembler command-line front end.
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

	"github.com/rcornwell/p2dev/internal/assemble"
	"github.com/rcornwell/p2dev/util/logger"
)

func main() {
	optOutput := getopt.StringLong("output", 'o', "a.bin", "Output image file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Mirror log output to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp || getopt.NArgs() == 0 {
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

	source := getopt.Arg(0)
	text, err := os.ReadFile(source)
	if err != nil {
		slog.Error("reading source", "file", source, "err", err)
		os.Exit(1)
	}

	asm := assemble.New()
	image, err := asm.Assemble(string(text))
	if err != nil {
		slog.Error("assembly failed", "err", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*optOutput, image, 0o644); err != nil {
		slog.Error("writing image", "file", *optOutput, "err", err)
		os.Exit(1)
	}
	slog.Info("assembled", "source", source, "bytes", len(image), "output", *optOutput)
}
