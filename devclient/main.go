// Dev/test client for the analyze endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"analyze-service/streamclient"

	"github.com/apex/log"
)

var (
	url        = flag.String("url", "http://127.0.0.1:8080", "Analyze service base URL.")
	prompt     = flag.String("prompt", "", "Free-text prompt. Overrides -role and -resume.")
	role       = flag.String("role", "", "Target role for resume analysis.")
	resumeFile = flag.String("resume", "", "Path to a plain-text resume.")
	gaps       = flag.String("gaps", "", "Comma separated missing skills.")
)

func main() {
	flag.Parse()

	req, err := buildRequest()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printed := 0
	client := streamclient.New(*url, streamclient.WithStateHook(func(s streamclient.State) {
		log.Debugf("state: %s", s)
	}))
	res, err := client.Analyze(ctx, req, func(text string) {
		fmt.Print(text[printed:])
		printed = len(text)
	})
	fmt.Println()
	if err != nil {
		log.WithField("chars", len(res.Text)).Errorf("analyze failed: %v", err)
		os.Exit(1)
	}
	log.WithFields(log.Fields{
		"streamed": res.Streamed,
		"deltas":   res.Deltas,
		"chars":    len(res.Text),
	}).Info("done")
}

func buildRequest() (streamclient.Request, error) {
	if *prompt != "" {
		return streamclient.Request{Prompt: *prompt}, nil
	}
	if *resumeFile == "" || *role == "" {
		return streamclient.Request{}, fmt.Errorf("either -prompt or both -role and -resume are required")
	}
	data, err := os.ReadFile(*resumeFile)
	if err != nil {
		return streamclient.Request{}, fmt.Errorf("failed to read resume: %w", err)
	}

	var skills []string
	for _, s := range strings.Split(*gaps, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return streamclient.BuildRequest(string(data), *role, skills), nil
}
