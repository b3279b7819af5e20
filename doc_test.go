// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdsu

import (
	"runtime/debug"
	"testing"
)

func TestVersion(t *testing.T) {
	for _, tc := range []struct {
		name    string
		info    *debug.BuildInfo
		version string
		sum     string
	}{
		{name: "nil"},
		{
			name:    "main",
			info:    &debug.BuildInfo{Main: debug.Module{Path: "github.com/go-lpc/sdsu", Version: "v0.1.0", Sum: "h1:xxx"}},
			version: "v0.1.0",
			sum:     "h1:xxx",
		},
		{
			name: "dep",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/camera"},
				Deps: []*debug.Module{
					{Path: "golang.org/x/sys", Version: "v0.7.0"},
					{Path: "github.com/go-lpc/sdsu", Version: "v0.2.0", Sum: "h1:yyy"},
				},
			},
			version: "v0.2.0",
			sum:     "h1:yyy",
		},
		{
			name: "replace-path",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/camera"},
				Deps: []*debug.Module{
					{Path: "github.com/go-lpc/sdsu", Version: "v0.2.0", Replace: &debug.Module{Path: "../sdsu"}},
				},
			},
			version: "../sdsu",
		},
		{
			name: "replace-version",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/camera"},
				Deps: []*debug.Module{
					{Path: "github.com/go-lpc/sdsu", Version: "v0.2.0", Replace: &debug.Module{Path: "example.org/sdsu", Version: "v0.3.0", Sum: "h1:zzz"}},
				},
			},
			version: "example.org/sdsu v0.3.0",
			sum:     "h1:zzz",
		},
		{
			name: "missing",
			info: &debug.BuildInfo{Main: debug.Module{Path: "example.org/camera"}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, sum := versionOf(tc.info)
			if version != tc.version || sum != tc.sum {
				t.Fatalf("invalid version: got=(%q, %q), want=(%q, %q)", version, sum, tc.version, tc.sum)
			}
		})
	}
}
