package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/arloliu/go-lislink/publisher"
	"github.com/arloliu/go-lislink/supervisor"
)

type options struct {
	catalog       string
	sink          string
	sync          bool
	natsURL       string
	natsPrefix    string
	logLevel      string
	retryDelay    time.Duration
	maxRetries    int
	inactiveDelay time.Duration
	statsInterval time.Duration
	watch         bool
}

// parseArgs parses command line flags. An environment variable fills in a
// flag that was left at its default.
func parseArgs(args []string, getenv func(string) string, output io.Writer) (options, error) {
	var o options

	flags := flag.NewFlagSet("lislinkd", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&o.catalog, "catalog", "", "instrument catalog file (.toml, .yaml) [LISLINK_CATALOG]")
	flags.StringVar(&o.sink, "sink", "messages.jsonl",
		"message store: a JSONL file path or \"memory\" [LISLINK_SINK]")
	flags.BoolVar(&o.sync, "sync", false, "fsync the JSONL sink after every batch")
	flags.StringVar(&o.natsURL, "nats", "", "NATS server URL for link events, empty disables [LISLINK_NATS_URL]")
	flags.StringVar(&o.natsPrefix, "nats-prefix", publisher.DefaultSubjectPrefix, "NATS subject prefix")
	flags.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error [LOG_LEVEL]")
	flags.DurationVar(&o.retryDelay, "retry-delay", supervisor.DefaultRetryDelay, "delay between reconnect attempts")
	flags.IntVar(&o.maxRetries, "max-retries", supervisor.DefaultMaxRetries, "consecutive failures before a link gives up")
	flags.DurationVar(&o.inactiveDelay, "inactive-delay", supervisor.DefaultInactiveDelay,
		"how often an inactive instrument is rechecked")
	flags.DurationVar(&o.statsInterval, "stats-interval", time.Minute, "link metrics log interval, 0 disables")
	flags.BoolVar(&o.watch, "watch", true, "reload the catalog when the file changes")

	if err := flags.Parse(args); err != nil {
		return o, err
	}

	set := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	env := []struct {
		flag string
		key  string
		dst  *string
	}{
		{"catalog", "LISLINK_CATALOG", &o.catalog},
		{"sink", "LISLINK_SINK", &o.sink},
		{"nats", "LISLINK_NATS_URL", &o.natsURL},
		{"log-level", "LOG_LEVEL", &o.logLevel},
	}
	for _, e := range env {
		if set[e.flag] {
			continue
		}
		if v := strings.TrimSpace(getenv(e.key)); v != "" {
			*e.dst = v
		}
	}

	if o.catalog == "" {
		return o, errors.New("lislinkd: -catalog is required")
	}
	if o.statsInterval < 0 {
		return o, fmt.Errorf("lislinkd: negative stats interval %v", o.statsInterval)
	}

	return o, nil
}

func mustParseArgs() options {
	o, err := parseArgs(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	return o
}
