// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/sdsu/ctl"
)

func TestEval(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("SDSU_DEVICE_PATH", filepath.Join(tmp, "sdsu.log"))

	r, err := newRunner("", "")
	if err != nil {
		t.Fatalf("could not create local runner: %+v", err)
	}
	defer r.Close()

	for _, tc := range []struct {
		line string
		want string
		more bool
	}{
		{line: "tdl tim 0x42", want: "ok value=66 (0x42)\n", more: true},
		{line: "rdm tim y 1", want: "ok value=2176 (0x880)\n", more: true},
		{line: "status", want: "ok value=0 (0x0) status=none\n", more: true},
		{line: "tdl tim zz", want: "usage: tdl <board> <data>", more: true},
		{line: "boom", want: `unknown command "boom"`, more: true},
		{line: "help", want: ctl.Usage("fw-move"), more: true},
		{line: "quit", more: false},
	} {
		t.Run(tc.line, func(t *testing.T) {
			o := new(strings.Builder)
			more := eval(r, tc.line, o)
			if more != tc.more {
				t.Fatalf("invalid continuation: got=%v, want=%v", more, tc.more)
			}
			if !strings.Contains(o.String(), tc.want) {
				t.Fatalf("invalid output:\ngot= %q\nwant=%q", o.String(), tc.want)
			}
		})
	}
}

func TestRemote(t *testing.T) {
	_, err := newRunner("", "localhost:1")
	if err == nil {
		t.Fatalf("expected a dial error")
	}

	_, err = newRunner(filepath.Join(t.TempDir(), "not-there.yaml"), "")
	if err == nil {
		t.Fatalf("expected a configuration error")
	}
}

func TestComplete(t *testing.T) {
	got := complete("fw-")
	if len(got) != 4 {
		t.Fatalf("invalid completion: %q", got)
	}
	for _, v := range got {
		if !strings.HasPrefix(v, "fw-") {
			t.Fatalf("invalid completion: %q", v)
		}
	}
}

func TestHistoryFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if got := historyFile(); filepath.Base(got) != ".sdsu_history" || !strings.HasPrefix(got, os.Getenv("HOME")) {
		t.Fatalf("invalid history file: %q", got)
	}
}
