// Command lislinkd runs the instrument links of a catalog file.
//
// Every active instrument gets a supervisor that keeps its transport
// connected, detects or uses the configured protocol and stores completed
// messages in the configured sink. Link events are logged and, when a NATS
// URL is given, published on "<prefix>.<instrument id>".
//
// Usage:
//
//	lislinkd -catalog /etc/lislink/catalog.toml -sink /var/lib/lislink/messages.db -nats nats://localhost:4222
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/arloliu/go-lislink/catalog"
	"github.com/arloliu/go-lislink/internal/pool"
	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
	"github.com/arloliu/go-lislink/publisher"
	"github.com/arloliu/go-lislink/supervisor"
)

func main() {
	o := mustParseArgs()

	logger.SetDefault(logger.NewSlog(logger.ParseLevel(o.logLevel), false).With("service", "lislinkd"))
	log := logger.GetLogger()

	if err := serve(o, log); err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			log.Info("shutting down", "signal", sig.Signal.String())
			return
		}
		log.Error("lislinkd stopped", "error", err)
		os.Exit(1)
	}
}

func serve(o options, log logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := catalog.Open(o.catalog, catalog.WithLogger(log))
	if err != nil {
		return err
	}

	msgSink, closer, err := openSink(ctx, o, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	pubs := []link.EventPublisher{publisher.NewLog(log)}
	if o.natsURL != "" {
		nc, err := publisher.Connect(o.natsURL, "lislinkd", log)
		if err != nil {
			return fmt.Errorf("lislinkd: connect nats: %w", err)
		}
		defer nc.Close()

		np, err := publisher.NewNATS(nc, publisher.WithSubjectPrefix(o.natsPrefix), publisher.WithNATSLogger(log))
		if err != nil {
			return err
		}
		pubs = append(pubs, np)
	}
	events := publisher.NewAsync(publisher.NewMulti(pubs...), 0)
	defer events.Close()

	mgr, err := supervisor.NewManager(provider, msgSink,
		supervisor.WithPublisher(events),
		supervisor.WithLogger(log),
		supervisor.WithRetryDelay(o.retryDelay),
		supervisor.WithMaxRetries(o.maxRetries),
		supervisor.WithInactiveDelay(o.inactiveDelay),
	)
	if err != nil {
		return err
	}

	var g run.Group

	g.Add(func() error {
		if err := mgr.Start(ctx); err != nil {
			log.Warn("some instrument links failed to start", "error", err)
		}
		<-ctx.Done()

		return nil
	}, func(error) {
		cancel()
		mgr.Stop()
	})

	if o.watch {
		watchCtx, stopWatch := context.WithCancel(ctx)
		g.Add(func() error {
			return provider.Watch(watchCtx, func(ctx context.Context) {
				if err := mgr.Reload(ctx); err != nil {
					log.Warn("catalog reload incomplete", "error", err)
				}
			})
		}, func(error) {
			stopWatch()
		})
	}

	if o.statsInterval > 0 {
		statsCtx, stopStats := context.WithCancel(ctx)
		g.Add(func() error {
			for pool.Sleep(statsCtx, o.statsInterval) == nil {
				logStats(mgr, log)
			}

			return nil
		}, func(error) {
			stopStats()
		})
	}

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	log.Info("lislinkd started", "catalog", provider.Path(), "sink", o.sink, "nats", o.natsURL)
	start := time.Now()
	err = g.Run()
	log.Info("lislinkd exiting", "uptime", time.Since(start).Round(time.Second).String())

	return err
}

func logStats(mgr *supervisor.Manager, log logger.Logger) {
	for _, id := range mgr.Instruments() {
		status, err := mgr.Status(id)
		if err != nil {
			continue
		}
		m, err := mgr.Metrics(id)
		if err != nil {
			continue
		}
		s := m.Snapshot()
		log.Info("link stats",
			"instrument", id,
			"status", string(status),
			"bytesRecv", s.BytesRecv,
			"bytesSend", s.BytesSend,
			"framesAccepted", s.FramesAccepted,
			"framesRejected", s.FramesRejected,
			"messages", s.MsgsOffloaded,
			"offloadErrors", s.OffloadErrors,
			"sessionTimeouts", s.SessionTimeouts,
			"connects", s.Connects,
			"retries", s.ConnRetries,
		)
	}
}
