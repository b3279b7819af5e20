// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	mail "gopkg.in/gomail.v2"

	"github.com/go-lpc/sdsu"
)

func TestNewAlerter(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want []string
	}{
		{name: "no-server", env: map[string]string{}},
		{
			name: "no-port",
			env: map[string]string{
				"MAIL_SERVER": "smtp.example.org", "MAIL_USERNAME": "sdsu",
				"MAIL_PASSWORD": "secret", "MAIL_TGTS": "a@example.org",
			},
		},
		{
			name: "no-targets",
			env: map[string]string{
				"MAIL_SERVER": "smtp.example.org", "MAIL_PORT": "587",
				"MAIL_USERNAME": "sdsu", "MAIL_PASSWORD": "secret",
			},
		},
		{
			name: "ok",
			env: map[string]string{
				"MAIL_SERVER": "smtp.example.org", "MAIL_PORT": "587",
				"MAIL_USERNAME": "sdsu", "MAIL_PASSWORD": "secret",
				"MAIL_TGTS": "a@example.org, b@example.org,",
			},
			want: []string{"a@example.org", "b@example.org"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := newAlerter(func(k string) string { return tc.env[k] })
			switch {
			case tc.want == nil && a != nil:
				t.Fatalf("expected no alerter")
			case tc.want != nil && a == nil:
				t.Fatalf("could not create alerter")
			case a == nil:
				return
			}
			if !reflect.DeepEqual(a.tgts, tc.want) {
				t.Fatalf("invalid targets: got=%q, want=%q", a.tgts, tc.want)
			}
		})
	}
}

func TestAlert(t *testing.T) {
	var msgs []*mail.Message
	a := &alerter{
		from: "sdsu@example.org",
		tgts: []string{"a@example.org"},
		send: func(msg *mail.Message) error {
			msgs = append(msgs, msg)
			return errors.New("no smtp server")
		},
		alerts: make(map[string]int),
	}

	a.alert("tdl", sdsu.Errorf("dsp", sdsu.ErrInvalidArg, "unknown board"))
	a.alert("fw-move", &sdsu.Error{Op: "fw", Kind: sdsu.ErrAborted})
	if len(msgs) != 0 {
		t.Fatalf("request failures should not be mailed: %d", len(msgs))
	}

	for i := 0; i < maxAlerts+2; i++ {
		a.alert("fw-move", sdsu.Errorf("fw: move", sdsu.ErrTimeout, "wheel did not settle"))
	}
	a.alert("rcc", &sdsu.Error{Op: "dsp", Kind: sdsu.ErrProtocol})

	if got, want := len(msgs), maxAlerts+1; got != want {
		t.Fatalf("invalid number of mails: got=%d, want=%d", got, want)
	}
	if got := msgs[0].GetHeader("Subject"); len(got) != 1 || !strings.Contains(got[0], "fw-move failed") {
		t.Fatalf("invalid subject: %q", got)
	}
	if got := msgs[maxAlerts].GetHeader("Subject"); len(got) != 1 || !strings.Contains(got[0], "rcc failed") {
		t.Fatalf("invalid subject: %q", got)
	}
	if got := msgs[0].GetHeader("Bcc"); !reflect.DeepEqual(got, a.tgts) {
		t.Fatalf("invalid recipients: %q", got)
	}
}
