package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/tauronsensor/tauronsensor/pkg/aggregate"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/sensor"
	"github.com/tauronsensor/tauronsensor/pkg/storage"
	"github.com/tauronsensor/tauronsensor/pkg/tauron"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

const dateLayout = "2006-01-02"

func main() {
	client := tauron.Configured()
	s := storage.Configured()
	from := lflag.String("from", "", "First day to fetch (YYYY-MM-DD, default yesterday)")
	to := lflag.String("to", "", "Last day to fetch (YYYY-MM-DD, default today)")
	report := lflag.Bool("report", false, "Print the full aggregated report instead of the sensor snapshot")
	lflag.Configure()

	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	ctx := context.Background()
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	start, err := parseDay(*from)
	if err != nil {
		fatal(ctx, "invalid from", err)
	}
	end, err := parseDay(*to)
	if err != nil {
		fatal(ctx, "invalid to", err)
	}

	series, err := client.FetchDailySeries(ctx, start, end)
	if err != nil {
		fatal(ctx, "failed to fetch data from tauron", err)
	}
	r := aggregate.Aggregate(series.Consumption, series.Production)
	snap := sensor.BuildSnapshot(r)

	// keep whatever the long-running process would restore on its next start
	if err := s.SetSnapshot(ctx, client.Username(), types.StoredSnapshot{Snapshot: snap, UpdatedAt: time.Now()}); err != nil {
		fatal(ctx, "failed to store snapshot", err)
	}

	var out any = snap
	if *report {
		out = r
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		fatal(ctx, "failed to write output", err)
	}
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func fatal(ctx context.Context, msg string, err error) {
	log.Ctx(ctx).ErrorContext(ctx, msg, "error", err)
	os.Exit(1)
}
