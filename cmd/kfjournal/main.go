// Command kfjournal is a small developer utility over the journal engine:
// list locations on a root, dump a stream's committed frames, print
// page/journal bookkeeping, or serve the process's metrics registry in
// Prometheus exposition format. It is not the trading-system CLI (out of
// scope for this repo); it exists to make the on-disk layout inspectable.
//
// Usage:
//
//	kfjournal ls      -category=md -group=* -name=* -mode=live
//	kfjournal cat     -category=md -group=bin -name=ctp -mode=live -dest=0
//	kfjournal stat    -category=md -group=bin -name=ctp -mode=live -dest=0
//	kfjournal metrics -addr=:9090
package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/kungfu-go/kfjournal/journal"
	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/location"
	"github.com/kungfu-go/kfjournal/log"
	"github.com/kungfu-go/kfjournal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. -log-level and
// -log-format (text, color, json) are accepted ahead of the subcommand and
// configure the process-wide console logger before the subcommand runs.
func run(args []string) int {
	logLevel := "info"
	logFormat := "text"
	for len(args) > 0 {
		switch {
		case args[0] == "-log-level" && len(args) > 1:
			logLevel, args = args[1], args[2:]
			continue
		case args[0] == "-log-format" && len(args) > 1:
			logFormat, args = args[1], args[2:]
			continue
		}
		break
	}
	log.SetDefault(log.NewConsoleFromName(os.Stderr, logLevel, logFormat))

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: kfjournal [-log-level L] [-log-format text|color|json] <ls|cat|stat|metrics> [flags]")
		return 1
	}

	switch args[0] {
	case "ls":
		return runLS(args[1:])
	case "cat":
		return runCat(args[1:])
	case "stat":
		return runStat(args[1:])
	case "metrics":
		return runMetrics(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		return 1
	}
}

// locatorFlags holds the identity filters (-category, -group, -name) plus
// -mode used by the subcommands, and resolves the Locator for the chosen
// mode.
type locatorFlags struct {
	category string
	group    string
	name     string
	mode     string
}

// bindLocatorFlags binds the two flags common to every subcommand
// (-category, -mode). -group/-name are bound separately by each subcommand
// since ls treats them as wildcard filters while cat/stat require an exact
// match.
func bindLocatorFlags(fs *flag.FlagSet) *locatorFlags {
	lf := &locatorFlags{}
	fs.StringVar(&lf.category, "category", "*", "category filter (md, td, strategy, system, or *)")
	fs.StringVar(&lf.mode, "mode", "live", "mode (live, data, replay, backtest)")
	return lf
}

func (lf *locatorFlags) locator() (*location.Locator, error) {
	mode, ok := location.ModeFromString(lf.mode)
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", lf.mode)
	}
	return location.NewLocator(mode)
}

func runLS(args []string) int {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	lf := bindLocatorFlags(fs)
	fs.StringVar(&lf.group, "group", "*", "group filter, or *")
	fs.StringVar(&lf.name, "name", "*", "name filter, or *")
	fs.Parse(args)

	lr, err := lf.locator()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	locs, err := lr.ListLocations(lf.category, lf.group, lf.name, lf.mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, loc := range locs {
		dests, err := lr.ListLocationDest(loc)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("%s  uid=%08x  dests=%v\n", loc, loc.UID(), dests)
	}
	return 0
}

func runCat(args []string) int {
	fs := flag.NewFlagSet("cat", flag.ExitOnError)
	lf := bindLocatorFlags(fs)
	group := fs.String("group", "", "exact group")
	name := fs.String("name", "", "exact name")
	dest := fs.Uint("dest", 0, "destination id")
	from := fs.Int64("from", 0, "gen_time to seek from, 0 for the stream's beginning")
	fs.Parse(args)
	lf.group, lf.name = *group, *name

	lr, err := lf.locator()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	mode, _ := location.ModeFromString(lf.mode)
	category, ok := location.CategoryFromString(lf.category)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown category %q\n", lf.category)
		return 1
	}
	loc := location.New(lr, mode, category, lf.group, lf.name)

	cfg := kfconfig.Default()
	r := journal.NewReader(cfg)
	defer r.Close()
	log.Default().Debug("joining stream", "location", loc.String(), "dest", *dest, "from", *from)
	if err := r.Join(loc, uint32(*dest), *from); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for {
		avail, err := r.DataAvailable()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if !avail {
			return 0
		}
		f := r.CurrentFrame()
		fmt.Printf("gen_time=%d trigger_time=%d msg_type=%d source=%08x dest=%08x len=%d\n",
			f.GenTime(), f.TriggerTime(), f.MsgType(), f.Source(), f.Dest(), f.Length())
		if err := r.Next(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
}

func runStat(args []string) int {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)
	lf := bindLocatorFlags(fs)
	group := fs.String("group", "", "exact group")
	name := fs.String("name", "", "exact name")
	dest := fs.Uint("dest", 0, "destination id")
	fs.Parse(args)
	lf.group, lf.name = *group, *name

	lr, err := lf.locator()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	mode, _ := location.ModeFromString(lf.mode)
	category, ok := location.CategoryFromString(lf.category)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown category %q\n", lf.category)
		return 1
	}
	loc := location.New(lr, mode, category, lf.group, lf.name)

	cfg := kfconfig.Default()
	j, err := journal.OpenJournal(loc, uint32(*dest), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer j.Close()
	stats, err := j.Stats()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("location: %s\ndest:     %08x\npages:    %v\ncurrent:  %d\n", stats.Location, stats.DestID, stats.PageIDs, stats.CurrentID)
	return 0
}

// runMetrics serves metrics.DefaultRegistry in Prometheus text exposition
// format. With -once it scrapes the handler a single time and prints the
// body to stdout, for scripting and tests; otherwise it blocks, serving
// http://-addr/metrics until the process is killed.
func runMetrics(args []string) int {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	addr := fs.String("addr", ":9090", "address to serve /metrics on")
	once := fs.Bool("once", false, "scrape once and print to stdout instead of serving")
	fs.Parse(args)

	exporter := metrics.NewPrometheusExporter(metrics.DefaultRegistry, metrics.DefaultPrometheusConfig())
	handler := exporter.Handler()

	if *once {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		fmt.Print(rec.Body.String())
		return 0
	}

	log.Default().Info("serving metrics", "addr", *addr, "path", "/metrics")
	if err := http.ListenAndServe(*addr, handler); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
