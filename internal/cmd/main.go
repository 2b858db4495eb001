package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Http timeouts
const (
	ReadTimeout  = 10 * time.Second
	WriteTimeout = 2 * time.Minute
	// Telegram redelivers a webhook update it did not get an answer for within a minute
	HandlerTimeout = 55 * time.Second
)

// WaitForInterrupt waits for SIGINT or SIGTERM, or for ctx to be canceled
func WaitForInterrupt(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		return fmt.Errorf("received signal %s", sig)
	case <-ctx.Done():
		return errors.New("canceled")
	}
}
