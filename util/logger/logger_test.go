/*
 * P2 - Wrapper for slog test routines.
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
package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandleWritesToFileAndMessage(t *testing.T) {
	var buf bytes.Buffer
	debug := false
	h := NewHandler(&buf, nil, &debug)
	logger := slog.New(h)
	logger.Info("assembled", "bytes", 64)

	out := buf.String()
	if !strings.Contains(out, "assembled") {
		t.Errorf("log output = %q, want it to contain the message", out)
	}
	if !strings.Contains(out, "INFO:") {
		t.Errorf("log output = %q, want a level prefix", out)
	}
}

func TestSetDebugTogglesStderrMirroring(t *testing.T) {
	var buf bytes.Buffer
	debug := false
	h := NewHandler(&buf, nil, &debug)
	if h.debug {
		t.Fatal("debug should start false")
	}
	enabled := true
	h.SetDebug(&enabled)
	if !h.debug {
		t.Error("SetDebug(true) should flip the handler's debug flag")
	}
}
