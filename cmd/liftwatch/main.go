// liftwatch follows one pond's lift-net operation from the terminal,
// printing each phase transition the way the status popup would show it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pond-status-backend/internal/poller"
	"pond-status-backend/internal/store"
)

func main() {
	baseURL := flag.String("server", "http://localhost:8080", "pond status server base URL")
	pondID := flag.Int64("pond", 0, "pond id to watch")
	flag.Parse()

	if *pondID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: liftwatch -pond <id> [-server <url>]")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	done := make(chan struct{})
	client := poller.NewClient(*baseURL, nil)
	p := poller.New(client, *pondID, poller.Options{
		OnStatusUpdate: func(phase store.Phase) {
			fmt.Printf("[%s] %d/5 %s\n", time.Now().Format("15:04:05"), phase.Wire(), phase.Message())
		},
		OnStatusComplete: func() {
			fmt.Printf("[%s] 5/5 %s\n", time.Now().Format("15:04:05"), store.PhaseCompleted.Message())
			close(done)
		},
	})

	fmt.Printf("watching pond %d on %s\n", *pondID, *baseURL)
	p.Start(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			fmt.Println("interrupted")
			return
		case <-ticker.C:
			// The poller stops itself on its timeout ceiling.
			if !p.IsProcessing() && !p.IsCompleted() {
				if msg := p.Err(); msg != "" {
					fmt.Fprintln(os.Stderr, msg)
				}
				os.Exit(1)
			}
		}
	}
}
