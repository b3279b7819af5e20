// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package web exposes the control commands of an SDSU controller setup
// over HTTP.
//
// Values are exchanged as small JSON payloads: {"int": 66} or {"str": "none"}.
package web // import "github.com/go-lpc/sdsu/web"

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/ctl"
)

// IntT holds an integer.
type IntT struct {
	Int int64 `json:"int"`
}

// StrT holds a string.
type StrT struct {
	Str string `json:"str"`
}

// ExposeT describes an exposure to start, in ms.
type ExposeT struct {
	Length int64 `json:"length"`
	Delay  int64 `json:"delay"`
}

// Payload is the reply of a successful command.
type Payload struct {
	Int    *int64 `json:"int,omitempty"`
	Str    string `json:"str,omitempty"`
	Status string `json:"status,omitempty"`
}

// EncodeAndRespond writes the payload as JSON to w.
func (p Payload) EncodeAndRespond(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewRouter returns the HTTP routes of the commands run by h.
func NewRouter(h *ctl.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/dsp", func(r chi.Router) {
		r.Get("/hstr", run(h, "status", nil))
		r.Get("/config", run(h, "rcc", nil))
		r.Post("/reset", run(h, "reset", nil))
		r.Post("/tdl/{board}", run(h, "tdl", func(r *http.Request, args *ctl.Args) error {
			args.Board = chi.URLParam(r, "board")
			v, err := decodeInt(r)
			args.Data = int32(v)
			return err
		}))
		r.Get("/mem/{board}/{space}/{addr}", run(h, "rdm", location))
		r.Post("/mem/{board}/{space}/{addr}", run(h, "wrm", func(r *http.Request, args *ctl.Args) error {
			err := location(r, args)
			if err != nil {
				return err
			}
			v, err := decodeInt(r)
			args.Data = int32(v)
			return err
		}))
	})

	r.Route("/exposure", func(r chi.Router) {
		r.Get("/status", status(h, "status"))
		r.Get("/elapsed", run(h, "elapsed", nil))
		r.Post("/start", run(h, "expose", func(r *http.Request, args *ctl.Args) error {
			var exp ExposeT
			err := decode(r, &exp)
			args.Length = exp.Length
			args.Delay = exp.Delay
			return err
		}))
		r.Post("/abort", run(h, "abort", nil))
	})

	r.Route("/fw", func(r chi.Router) {
		r.Get("/pos", run(h, "fw-status", nil))
		r.Post("/pos", run(h, "fw-move", func(r *http.Request, args *ctl.Args) error {
			v, err := decodeInt(r)
			args.Position = int(v)
			return err
		}))
		r.Get("/status", status(h, "fw-status"))
		r.Post("/reset", run(h, "fw-reset", nil))
		r.Post("/abort", run(h, "fw-abort", nil))
	})

	return r
}

type parser func(r *http.Request, args *ctl.Args) error

func run(h *ctl.Handler, name string, parse parser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var args ctl.Args
		if parse != nil {
			err := parse(r, &args)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		rep, err := h.Exec(name, args)
		if err != nil {
			http.Error(w, err.Error(), statusCode(err))
			return
		}
		Payload{Int: rep.Value, Status: rep.Status}.EncodeAndRespond(w)
	}
}

func status(h *ctl.Handler, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := h.Exec(name, ctl.Args{})
		if err != nil {
			http.Error(w, err.Error(), statusCode(err))
			return
		}
		Payload{Str: rep.Status}.EncodeAndRespond(w)
	}
}

func location(r *http.Request, args *ctl.Args) error {
	addr, err := strconv.ParseInt(chi.URLParam(r, "addr"), 0, 32)
	if err != nil {
		return err
	}
	args.Board = chi.URLParam(r, "board")
	args.Space = chi.URLParam(r, "space")
	args.Addr = int32(addr)
	return nil
}

func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func decodeInt(r *http.Request) (int64, error) {
	var v IntT
	err := decode(r, &v)
	return v.Int, err
}

func statusCode(err error) int {
	switch sdsu.KindOf(err) {
	case sdsu.ErrInvalidArg:
		return http.StatusBadRequest
	case sdsu.ErrNotReady:
		return http.StatusServiceUnavailable
	case sdsu.ErrExposurePhase, sdsu.ErrAborted:
		return http.StatusConflict
	case sdsu.ErrTimeout:
		return http.StatusGatewayTimeout
	case sdsu.ErrTransport, sdsu.ErrProtocol, sdsu.ErrVerification:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
