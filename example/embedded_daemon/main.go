package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/scriptd"
	"github.com/loykin/scriptd/internal/protocol"
)

// embedded_daemon: host the supervisor in-process instead of spawning the
// detached daemon. It starts a short script, waits for its output to land in
// the retained window, prints it, then shuts everything down.
func main() {
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("scriptd-demo-%d", time.Now().UnixNano()))
	cfg, err := scriptd.LoadConfig(dir)
	if err != nil {
		panic(err)
	}

	d, err := scriptd.NewDaemon(cfg)
	if err != nil {
		panic(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	c := scriptd.NewClient(cfg)
	resp, err := c.Do(scriptd.Request{
		Type:   protocol.RequestStart,
		Script: "sh -c 'echo hello-out; echo hello-err 1>&2'",
	})
	if err != nil {
		panic(err)
	}
	if resp.Error != "" {
		panic(resp.Error)
	}
	id := resp.ID
	fmt.Println("Embedded daemon example")
	fmt.Println("  State directory:", dir)
	fmt.Println("  Started process:", id)

	// Poll until both lines appear in the retained window.
	for i := 0; i < 50; i++ {
		resp, err = c.Do(scriptd.Request{Type: protocol.RequestLogs, ProcessID: id})
		if err != nil {
			panic(err)
		}
		if len(resp.Logs) >= 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	for _, e := range resp.Logs {
		fmt.Printf("  [%s] %s\n", e.Origin, e.Text)
	}

	cancel()
	<-done
	fmt.Println("Tip: the scriptd CLI spawns this same daemon detached and talks to it over", cfg.Socket)
}
