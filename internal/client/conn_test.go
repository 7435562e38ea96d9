package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// serve answers every request on c with reply(request) until c closes.
func serve(c net.Conn, reply func(string) string) {
	buf := make([]byte, 1024)
	for {
		n, err := c.Read(buf)
		if err != nil {
			return
		}
		if _, err := c.Write([]byte(reply(string(buf[:n])))); err != nil {
			return
		}
	}
}

func TestConnDoPairsReplies(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	go serve(server, func(req string) string { return "reply:" + req })

	conn := NewConn(client, time.Second)
	defer conn.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := fmt.Sprintf("req%d", i)
			got, err := conn.Do(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			if got != "reply:"+req {
				errs <- fmt.Errorf("request %q paired with %q", req, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConnDoLongReply(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	long := "Song: " + strings.Repeat("x", 3000) + "\nArtist: Artist X\nAlbum: Album Y"
	go serve(server, func(req string) string {
		if req == "info" {
			return long
		}
		return "short"
	})

	conn := NewConn(client, time.Second)
	defer conn.Close()

	got, err := conn.Do(context.Background(), "info")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != long {
		t.Errorf("long reply truncated to %d bytes, want %d", len(got), len(long))
	}
	if got, err := conn.Do(context.Background(), "play"); err != nil || got != "short" {
		t.Errorf("next request paired with %q, %v", got, err)
	}
}

func TestConnDoServerClosed(t *testing.T) {
	server, client := net.Pipe()
	go func() {
		buf := make([]byte, 64)
		server.Read(buf)
		server.Close()
	}()

	conn := NewConn(client, time.Second)
	if _, err := conn.Do(context.Background(), "info"); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Do after server close = %v, want ErrDisconnected", err)
	}
	if _, err := conn.Do(context.Background(), "info"); !errors.Is(err, ErrDisconnected) {
		t.Errorf("second Do = %v, want ErrDisconnected", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Close after disconnect = %v", err)
	}
}

func TestConnDoTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	// Read the request but never reply
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	conn := NewConn(client, 20*time.Millisecond)
	_, err := conn.Do(context.Background(), "info")
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Do = %v, want ErrDisconnected", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error %q does not mention the timeout", err)
	}
	if _, err := conn.Do(context.Background(), "play"); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Do after timeout = %v, want ErrDisconnected", err)
	}
}

func TestConnDoContextDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	go func() {
		buf := make([]byte, 64)
		server.Read(buf)
	}()

	conn := NewConn(client, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := conn.Do(ctx, "info"); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Do = %v, want ErrDisconnected", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Do took %v with a 20ms deadline", elapsed)
	}
}

func TestConnCloseSendsQuit(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		got <- string(buf[:n])
	}()

	conn := NewConn(client, time.Second)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case msg := <-got:
		if msg != "quit" {
			t.Errorf("server received %q, want \"quit\"", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received quit")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if _, err := conn.Do(context.Background(), "info"); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Do after Close = %v, want ErrDisconnected", err)
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := Dial(context.Background(), addr, time.Second); err == nil {
		t.Error("expected error dialing a closed port")
	}
}

func TestDialAndDo(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		serve(c, strings.ToUpper)
	}()

	conn, err := Dial(context.Background(), ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	got, err := conn.Do(context.Background(), "info")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "INFO" {
		t.Errorf("Do = %q, want %q", got, "INFO")
	}
}
