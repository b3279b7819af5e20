// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	mail "gopkg.in/gomail.v2"

	"github.com/go-lpc/sdsu"
)

const maxAlerts = 5 // mails sent per failing command

// alerter mails the failures of the controller hardware.
type alerter struct {
	from string
	tgts []string
	send func(msg *mail.Message) error

	mu     sync.Mutex
	alerts map[string]int // number of alerts per command
}

// newAlerter creates an alerter from the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
// It returns nil when no mail server is configured.
func newAlerter(getenv func(string) string) *alerter {
	var (
		usr  = getenv("MAIL_USERNAME")
		pwd  = getenv("MAIL_PASSWORD")
		srv  = getenv("MAIL_SERVER")
		port = atoi(getenv("MAIL_PORT"))
		tgts = splitList(getenv("MAIL_TGTS"))
	)
	if srv == "" {
		return nil
	}
	if usr == "" || pwd == "" || port == 0 || len(tgts) == 0 {
		log.Printf("could not setup mail alerts: missing credentials")
		return nil
	}

	dial := mail.NewDialer(srv, port, usr, pwd)
	dial.TLSConfig = &tls.Config{
		ServerName: srv,
	}
	return &alerter{
		from:   usr,
		tgts:   tgts,
		send:   func(msg *mail.Message) error { return dial.DialAndSend(msg) },
		alerts: make(map[string]int),
	}
}

// hardware reports whether err is a failure of the controller rather
// than of the request.
func hardware(err error) bool {
	switch sdsu.KindOf(err) {
	case sdsu.ErrTransport, sdsu.ErrProtocol, sdsu.ErrVerification, sdsu.ErrTimeout:
		return true
	}
	return false
}

func (a *alerter) alert(name string, err error) {
	if !hardware(err) {
		return
	}

	a.mu.Lock()
	a.alerts[name]++
	n := a.alerts[name]
	a.mu.Unlock()

	if n > maxAlerts {
		return
	}

	host, _ := os.Hostname()
	msg := mail.NewMessage()
	msg.SetHeader("From", a.from)
	msg.SetHeader("Bcc", a.tgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[sdsu-srv] %s failed on %s", name, host))
	msg.SetBody("text/plain", fmt.Sprintf("command: %q\nerror: %+v\nalert: %d/%d", name, err, n, maxAlerts))

	err = a.send(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("could not parse %q: %+v", s, err)
		return 0
	}
	return v
}

func splitList(s string) []string {
	var vs []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			vs = append(vs, v)
		}
	}
	return vs
}
