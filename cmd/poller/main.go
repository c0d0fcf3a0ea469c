// Command poller uploads one file, starts grading and waits for the verdict.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agt_platform/internal/client"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/platform/logger"
)

func main() {
	apiURL := flag.String("api", envOr("API_URL", "http://localhost:8080"), "API base URL")
	token := flag.String("token", os.Getenv("API_TOKEN"), "bearer token (optional)")
	file := flag.String("file", "", "file to upload")
	attempts := flag.Int("attempts", client.DefaultMaxAttempts, "maximum status fetches")
	interval := flag.Duration("interval", client.DefaultInterval, "delay between fetches")
	maxWait := flag.Duration("max-wait", 2*time.Minute, "wall-clock bound, 0 to disable")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger.Init(*logLevel, "console")
	if *file == "" {
		fmt.Fprintln(os.Stderr, "poller: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "poller: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []client.Option
	if *token != "" {
		opts = append(opts, client.WithToken(*token))
	}
	var last model.AssignmentStatus
	p := client.NewPoller(client.New(*apiURL, opts...), client.PollerConfig{
		MaxAttempts: *attempts,
		Interval:    *interval,
		MaxWait:     *maxWait,
		OnUpdate: func(a model.Assignment) {
			if a.Status != last {
				fmt.Printf("%s  %s\n", a.ID, a.Status)
				last = a.Status
			}
		},
	})

	res, err := p.Run(ctx, *file, f)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "poller: cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "poller: %v\n", err)
		os.Exit(1)
	}
	os.Exit(render(res))
}

func render(res *client.Result) int {
	switch {
	case res.Terminal && res.Assignment.Status == model.StatusGraded:
		fmt.Printf("Graded: %.1f / %.0f\n", deref(res.Assignment.SuggestedGrade), model.MaxGrade)
		if res.Assignment.Feedback != nil {
			fmt.Println(*res.Assignment.Feedback)
		}
		return 0
	case res.Terminal:
		reason := "unknown error"
		if res.Assignment.Error != nil {
			reason = *res.Assignment.Error
		}
		fmt.Println(reason)
		return 1
	case res.TimedOut:
		fmt.Printf("Still grading after the wait limit. Check back later with id %s\n", res.ID)
		return 3
	default:
		fmt.Printf("Still grading after %d checks. Check back later with id %s\n", res.Attempts, res.ID)
		return 3
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
