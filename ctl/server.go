// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
)

// Server serves control requests over TCP.
// Each connection is served by its own goroutine, so that an abort can
// be sent while an exposure start is pending on another connection.
type Server struct {
	ctl net.Listener
	msg *log.Logger
	h   *Handler

	wg sync.WaitGroup
}

// Serve serves the control requests for h on addr.
func Serve(addr string, h *Handler) error {
	srv, err := NewServer(addr, h)
	if err != nil {
		return fmt.Errorf("could not create ctl server: %w", err)
	}
	return srv.Serve()
}

// NewServer returns a server listening on addr.
func NewServer(addr string, h *Handler) (*Server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not create ctl server on %q: %w", addr, err)
	}

	srv := &Server{
		ctl: ctl,
		msg: log.New(os.Stdout, "ctl: ", 0),
		h:   h,
	}
	return srv, nil
}

// Addr returns the listening address of the server.
func (srv *Server) Addr() net.Addr { return srv.ctl.Addr() }

// Serve accepts connections until the server is closed.
func (srv *Server) Serve() error {
	defer srv.wg.Wait()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("could not accept connection: %w", err)
		}

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.handle(conn)
		}()
	}
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)
	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			_ = enc.Encode(errReply(err))
			return
		}
		srv.msg.Printf("received request: name=%q", req.Name)

		err = enc.Encode(srv.h.Do(req))
		if err != nil {
			srv.msg.Printf("could not send reply to %q: %+v", req.Name, err)
			return
		}
	}
}

// Close stops accepting connections.
func (srv *Server) Close() error {
	return srv.ctl.Close()
}

// Client sends control requests to a server.
type Client struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
}

// Dial connects to the server listening on addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ctl: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		dec:  json.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
	}, nil
}

// Send runs the command name with args on the server.
// A command failure is reported by the returned Reply, not as an error.
func (c *Client) Send(name string, args Args) (Reply, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return Reply{}, fmt.Errorf("ctl: could not encode %q arguments: %w", name, err)
	}

	err = c.enc.Encode(Request{Name: name, Args: raw})
	if err != nil {
		return Reply{}, fmt.Errorf("ctl: could not send %q: %w", name, err)
	}

	var rep Reply
	err = c.dec.Decode(&rep)
	if err != nil {
		return Reply{}, fmt.Errorf("ctl: could not read %q reply: %w", name, err)
	}
	return rep, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
