// Package wyomingtest provides an in-process Wyoming server for tests.
package wyomingtest

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sandevgo/rpgai/internal/providers/wyoming"
)

// Handler serves one connection. Returning closes it.
type Handler func(conn *Session)

type Session struct {
	r *bufio.Reader
	c net.Conn
}

func (s *Session) Read() (wyoming.Event, error) { return wyoming.ReadEvent(s.r) }
func (s *Session) Write(ev wyoming.Event) error { return wyoming.WriteEvent(s.c, ev) }

type Server struct {
	Addr string

	ln    net.Listener
	wg    sync.WaitGroup
	conns atomic.Int32
}

func NewServer(h Handler) *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("wyomingtest: listen: " + err.Error())
	}
	s := &Server{Addr: "tcp://" + ln.Addr().String(), ln: ln}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.conns.Add(1)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer c.Close()
				h(&Session{r: bufio.NewReader(c), c: c})
			}()
		}
	}()
	return s
}

// Connections reports how many clients connected so far.
func (s *Server) Connections() int {
	return int(s.conns.Load())
}

func (s *Server) Close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

// InfoHandler answers describe with a fixed info event.
func InfoHandler(conn *Session) {
	for {
		ev, err := conn.Read()
		if err != nil {
			return
		}
		if ev.Type() == wyoming.TypeDescribe {
			_ = conn.Write(wyoming.Info{Raw: map[string]any{"tts": []any{map[string]any{"name": "piper"}}}})
		}
	}
}
