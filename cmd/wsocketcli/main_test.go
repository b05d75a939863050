package main

import (
	"testing"
	"time"

	"github.com/danmuck/wsocket/internal/testutil/testlog"
)

func TestPrinterDropsUnawaitedEvents(t *testing.T) {
	testlog.Start(t)
	p := &printer{echoes: make(chan struct{}, 1), pongs: make(chan struct{}, 1)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.OnText([]byte("a"), true)
		p.OnText([]byte("unsolicited"), true)
		p.OnBinary([]byte{1, 2}, true)
		p.OnPong()
		p.OnPong()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("printer blocked on a full channel")
	}
	if len(p.echoes) != 1 || len(p.pongs) != 1 {
		t.Fatalf("pending echoes=%d pongs=%d", len(p.echoes), len(p.pongs))
	}
}
