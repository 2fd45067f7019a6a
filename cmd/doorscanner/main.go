// Command doorscanner checks guests in from a QR reader at the door. Keyboard-wedge and serial
// readers emit one payload per line; each is verified against the check-in endpoint.
//
// Lines starting with ":" are commands: ":recheck" leaves the blocked state once the event has
// started. Anything else is treated as a scan. While blocked the reader stays open but scans are
// ignored.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"guestpass/config"
	"guestpass/internal/domain"
	"guestpass/internal/scanner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("doorscanner", flag.ContinueOnError)
	var (
		apiURL  = fs.String("api", envOr("GUESTPASS_API_URL", "http://localhost:8080"), "base URL of the guestpass API")
		eventID = fs.String("event", os.Getenv("GUESTPASS_EVENT_ID"), "event ID to check guests into")
		device  = fs.String("device", "", "read scans from this device or file instead of stdin")
		timeout = fs.Duration("timeout", 10*time.Second, "check-in request timeout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	bearer := os.Getenv("GUESTPASS_TOKEN")
	if *eventID == "" || bearer == "" {
		return errors.New("-event (or GUESTPASS_EVENT_ID) and GUESTPASS_TOKEN are required")
	}

	logger := config.NewLogger()
	verifier := scanner.NewHTTPVerifier(&http.Client{Timeout: *timeout}, *apiURL, *eventID, bearer)

	input, err := openInput(*device)
	if err != nil {
		return err
	}
	defer input.Close()

	// One reader for the whole run; sessions attach to it through the feed source.
	scans, commands := splitCommands(ctx, scanner.ReadLines(ctx, input))
	session := scanner.NewSession(scanner.NewFeedSource(scans), verifier,
		scanner.WithLogger(logger),
		scanner.WithEventHandler(func(ev scanner.Event) { report(logger, ev) }),
	)
	return serve(ctx, logger, session, commands, recheckInterval)
}

const recheckInterval = 30 * time.Second

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openInput(device string) (io.ReadCloser, error) {
	if device == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(device)
}

// splitCommands routes ":" lines to commands and everything else to scans. Both channels close
// when lines does.
func splitCommands(ctx context.Context, lines <-chan string) (scans, commands <-chan string) {
	scanCh := make(chan string)
	cmdCh := make(chan string)
	go func() {
		defer close(scanCh)
		defer close(cmdCh)
		for line := range lines {
			out := scanCh
			if strings.HasPrefix(line, ":") {
				out = cmdCh
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return scanCh, cmdCh
}

// serve runs session until input ends or ctx is cancelled. While blocked it rechecks every
// interval and on ":recheck".
func serve(ctx context.Context, logger *slog.Logger, session *scanner.Session, commands <-chan string, interval time.Duration) error {
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	done := session.Done()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			if session.State() != scanner.Blocked {
				return nil
			}
			done = nil
		case <-ticker.C:
			if session.State() == scanner.Blocked && recheck(ctx, logger, session) {
				done = session.Done()
			}
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			switch cmd {
			case ":recheck":
				if recheck(ctx, logger, session) {
					done = session.Done()
				}
			default:
				logger.Warn("unknown command", "command", cmd)
			}
		}
	}
}

func recheck(ctx context.Context, logger *slog.Logger, session *scanner.Session) bool {
	err := session.Recheck(ctx)
	var notOpen *domain.NotYetOpenError
	switch {
	case err == nil:
		return true
	case errors.As(err, &notOpen):
		logger.Info("check-in still closed", "starts_at", notOpen.StartsAt.Local().Format(time.RFC1123))
	default:
		logger.Info("recheck", "err", err)
	}
	return false
}

func report(logger *slog.Logger, ev scanner.Event) {
	switch {
	case ev.State == scanner.Blocked:
		logger.Warn("check-in is not open yet; scanner paused", "starts_at", ev.StartsAt.Local().Format(time.RFC1123))
	case ev.Result != nil && ev.Result.Status == domain.CheckInAlreadyAdmitted:
		logger.Warn("already checked in", "name", ev.Result.AttendeeName, "at", ev.Result.CheckedInAt.Local().Format(time.Kitchen))
	case ev.Result != nil:
		logger.Info("checked in", "name", ev.Result.AttendeeName)
	case errors.Is(ev.Err, domain.ErrInvalidToken):
		logger.Error("invalid QR code, try again")
	case ev.Err != nil && ev.State != scanner.Idle:
		logger.Error("check-in failed", "err", ev.Err)
	default:
		logger.Debug("scanner", "state", ev.State.String())
	}
}
