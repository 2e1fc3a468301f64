// Command assesscheck posts canned medical scenarios to a running relay and
// reports whether each result lands in the expected risk band.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/api/assess", "Assessment endpoint")
		stream      = flag.Bool("stream", false, "Endpoint streams plain text instead of JSON")
		full        = flag.Bool("full", false, "Run all ten scenarios instead of the quick pair")
		delay       = flag.Duration("delay", 2*time.Second, "Pause between requests")
		timeout     = flag.Duration("timeout", 2*time.Minute, "Per-request timeout")
		minAccuracy = flag.Float64("min-accuracy", 80, "Exit non-zero below this accuracy percentage")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cases := quickCases
	if *full {
		cases = fullCases
	}

	checker := &Checker{
		URL:    *url,
		Stream: *stream,
		Client: &http.Client{Timeout: *timeout},
		Out:    os.Stdout,
	}

	outcomes := make([]Outcome, 0, len(cases))
	for i, tc := range cases {
		if i > 0 {
			select {
			case <-ctx.Done():
				logrus.Fatal("interrupted")
			case <-time.After(*delay):
			}
		}

		fmt.Printf("\n#%d %s (expected %s)\n", tc.ID, tc.Description, tc.Expect)
		outcome := checker.Run(ctx, tc)
		if outcome.Err != nil {
			logrus.WithError(outcome.Err).WithField("case", tc.ID).Error("case failed")
		}
		outcomes = append(outcomes, outcome)
	}

	fmt.Println()
	PrintSummary(os.Stdout, outcomes)

	if Accuracy(outcomes) < *minAccuracy {
		os.Exit(1)
	}
}
