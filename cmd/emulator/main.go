package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gamma-omg/market-indicators/internal/config"
	"github.com/gamma-omg/market-indicators/internal/market"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
	"github.com/gamma-omg/market-indicators/internal/platform/emulator"
)

// Runs a single query against a CSV file and prints the result envelope.
func main() {
	data := flag.String("data", "", "bars csv file")
	base := flag.String("base", "1m", "resolution of the csv bars")
	indicators := flag.String("indicators", "rsi,macd,bbands", "comma separated indicator ids")
	resolution := flag.String("resolution", "1m", "bar resolution")
	mode := flag.String("mode", "snapshot", "snapshot or window")
	period := flag.String("period", "24h", "lookback period")
	to := flag.String("to", "", "end of the range, RFC3339")
	summary := flag.Bool("summary", false, "include the regime summary")
	decimals := flag.Int("decimals", int(market.DefaultDecimals), "fixed-point scale of the csv values")
	flag.Parse()

	if *data == "" {
		log.Fatal("-data is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	emu, err := emulator.NewEmulator(logger, config.Emulator{
		Data:           map[string]string{"csv": *data},
		BaseResolution: *base,
	})
	if err != nil {
		log.Fatal(err)
	}

	req := pipeline.Request{
		MarketID:                 "csv",
		Indicators:               strings.Split(*indicators, ","),
		Resolution:               market.Resolution(*resolution),
		Mode:                     pipeline.Mode(*mode),
		Period:                   pipeline.Period(*period),
		MicroSummary:             *summary,
		IncludeIncompleteLastBar: true,
	}
	if *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			log.Fatal(err)
		}
		req.To = t
	}

	p := pipeline.New(logger, emu, pipeline.Config{
		PriceDecimals:  int32(*decimals),
		VolumeDecimals: int32(*decimals),
	})

	env := p.Execute(context.Background(), req)

	e := json.NewEncoder(os.Stdout)
	e.SetIndent("", "  ")
	if err := e.Encode(env); err != nil {
		log.Fatal(err)
	}
	if !env.OK {
		os.Exit(1)
	}
}
