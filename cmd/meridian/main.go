package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/wizenheimer/meridian"
	"github.com/wizenheimer/meridian/config"
	"github.com/wizenheimer/meridian/loader"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "demo":
		err = demoCmd(ctx, os.Args[2:])
	case "query":
		err = queryCmd(ctx, os.Args[2:])
	case "bench":
		err = benchCmd(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: meridian <command> [options]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  demo   Range query, delete, update, kNN and LSH on the full dataset")
	fmt.Fprintln(os.Stderr, "  query  Run one range query and print the matches")
	fmt.Fprintln(os.Stderr, "  bench  Build/insert/query timings for growing dataset sizes")
}

// common holds the flags every command shares.
type common struct {
	configPath *string
	dataPath   *string
	kind       *string
	logLevel   *string
}

func commonFlags(flags *flag.FlagSet) common {
	return common{
		configPath: flags.String("config", "", "config yaml (optional, defaults to meridian.yaml)"),
		dataPath:   flags.String("data", "", "dataset path (overrides config)"),
		kind:       flags.String("kind", "", "index kind: kdtree|hypercube|rangetree|rtree|scan (overrides config)"),
		logLevel:   flags.String("log-level", "", "debug|info|warn|error (overrides config)"),
	}
}

// session is everything a command needs after loading.
type session struct {
	cfg    *config.Config
	logger *meridian.Logger
	store  *meridian.Store
	signer *meridian.MinHasher
}

func (c common) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if *c.dataPath != "" {
		cfg.Dataset.Path = *c.dataPath
	}
	if *c.kind != "" {
		cfg.Index.Kind = *c.kind
	}
	if *c.logLevel != "" {
		cfg.Log.Level = *c.logLevel
	}

	logger := newLogger(cfg.Log)

	signer, err := meridian.NewMinHasher(cfg.LSH.Bands * cfg.LSH.Rows)
	if err != nil {
		return nil, err
	}

	drafts, stats, err := loadDrafts(ctx, cfg, signer, logger)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.Dataset.Path, err)
	}

	store, err := meridian.NewStore(cfg.Dimensions(),
		meridian.WithStoreLogger(logger),
		meridian.WithSignatureSlots(signer.Slots()))
	if err != nil {
		return nil, err
	}
	if _, err := store.Load(drafts); err != nil {
		return nil, err
	}

	fmt.Printf("Loaded %d records (%d rows, %d skipped) from %s\n",
		stats.Loaded, stats.Rows, stats.Skipped, cfg.Dataset.Path)
	return &session{cfg: cfg, logger: logger, store: store, signer: signer}, nil
}

func newLogger(cfg config.LogConfig) *meridian.Logger {
	level := meridian.ParseLevel(cfg.Level)
	if cfg.Format == "json" {
		return meridian.NewJSONLogger(level)
	}
	return meridian.NewTextLogger(level)
}

func loadDrafts(ctx context.Context, cfg *config.Config, signer *meridian.MinHasher, logger *meridian.Logger) ([]meridian.RecordDraft, loader.Stats, error) {
	ds := cfg.Dataset
	attrs := make([]loader.Attribute, len(ds.Attributes))
	for i, a := range ds.Attributes {
		attrs[i] = loader.Attribute{Name: a.Name, Column: a.Column, Required: a.Required}
	}

	switch ds.Format {
	case "sqlite":
		db, err := loader.OpenSQLite(ds.Path)
		if err != nil {
			return nil, loader.Stats{}, err
		}
		defer db.Close()
		src, err := loader.NewSQLiteSource(db, loader.SQLiteOptions{
			Table:      ds.Table,
			TitleName:  ds.TitleName,
			TextName:   ds.TextName,
			Attributes: attrs,
			MinFirst:   ds.MinFirst,
			Limit:      ds.Limit,
		}, signer, logger)
		if err != nil {
			return nil, loader.Stats{}, err
		}
		return src.Load(ctx)
	default:
		return loader.LoadCSVFile(ctx, ds.Path, loader.CSVOptions{
			Comma:       []rune(ds.Comma)[0],
			SkipHeader:  true,
			TitleColumn: ds.TitleColumn,
			TextColumn:  ds.TextColumn,
			Attributes:  attrs,
			MinFirst:    ds.MinFirst,
			Limit:       ds.Limit,
		}, signer, logger)
	}
}

// newIndex creates an empty index of kind tuned by cfg.
func (s *session) newIndex(kind meridian.SpatialIndexKind) (meridian.SpatialIndex, error) {
	ic := s.cfg.Index
	switch kind {
	case meridian.HypercubeIndexKind:
		return meridian.NewHypercubeIndex(s.store, ic.Hypercube.Capacity, ic.Hypercube.MaxDepth)
	case meridian.RangeTreeIndexKind:
		return meridian.NewRangeTreeIndex(s.store, ic.RangeTree.Primary, ic.RangeTree.Secondary)
	case meridian.RTreeIndexKind:
		policy, err := meridian.ParseRTreeInsertPolicy(ic.RTree.InsertPolicy)
		if err != nil {
			return nil, err
		}
		return meridian.NewRTreeIndex(s.store, ic.RTree.LeafCapacity, ic.RTree.Fanout, ic.RTree.MaxChildren, policy)
	default:
		return meridian.NewSpatialIndex(kind, s.store)
	}
}

func (s *session) kinds() ([]meridian.SpatialIndexKind, error) {
	if strings.EqualFold(s.cfg.Index.Kind, "all") {
		return meridian.SpatialIndexKinds(), nil
	}
	kind, err := meridian.ParseSpatialIndexKind(s.cfg.Index.Kind)
	if err != nil {
		return nil, err
	}
	return []meridian.SpatialIndexKind{kind}, nil
}

func (s *session) queryBox(minFlag, maxFlag string) (meridian.Box, error) {
	dim := s.store.Dimensions()
	unbounded := meridian.UnboundedBox(dim)

	lo, err := parseBound(minFlag, s.cfg.Query.Min, unbounded.Min)
	if err != nil {
		return meridian.Box{}, fmt.Errorf("min: %w", err)
	}
	hi, err := parseBound(maxFlag, s.cfg.Query.Max, unbounded.Max)
	if err != nil {
		return meridian.Box{}, fmt.Errorf("max: %w", err)
	}
	if len(lo) != dim || len(hi) != dim {
		return meridian.Box{}, fmt.Errorf("bounds need %d values", dim)
	}
	return meridian.NewBox(lo, hi)
}

// parseBound prefers the comma-separated flag value, then the configured
// bound, then fallback.
func parseBound(flagValue string, configured, fallback []float64) ([]float64, error) {
	if flagValue == "" {
		if len(configured) > 0 {
			return configured, nil
		}
		return fallback, nil
	}
	parts := strings.Split(flagValue, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *session) ranker() (*meridian.KNNRanker, error) {
	return meridian.NewScaledKNNRanker(s.cfg.KNN.Scales)
}

func (s *session) lshFilter() (*meridian.LSHFilter, error) {
	bands := meridian.BandConfig{Bands: s.cfg.LSH.Bands, Rows: s.cfg.LSH.Rows}
	return meridian.NewLSHFilter(bands, *s.cfg.LSH.Threshold, s.cfg.LSH.Limit)
}

func demoCmd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("demo", flag.ExitOnError)
	c := commonFlags(flags)
	minFlag := flags.String("min", "", "comma-separated lower bounds (overrides config)")
	maxFlag := flags.String("max", "", "comma-separated upper bounds (overrides config)")
	updateAxis := flags.Int("update-axis", 1, "axis changed by the update demo")
	updateDelta := flags.Float64("update-delta", 15, "amount added to the updated attribute")
	flags.Parse(args)

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	box, err := s.queryBox(*minFlag, *maxFlag)
	if err != nil {
		return err
	}
	kinds, err := s.kinds()
	if err != nil {
		return err
	}
	ranker, err := s.ranker()
	if err != nil {
		return err
	}
	lsh, err := s.lshFilter()
	if err != nil {
		return err
	}

	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.demo(kind, box, ranker, lsh, *updateAxis, *updateDelta); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
	}
	return nil
}

// demo runs one experiment on a fresh store so that deletes and updates of
// one kind do not leak into the next.
func (s *session) demo(kind meridian.SpatialIndexKind, box meridian.Box, ranker *meridian.KNNRanker, lsh *meridian.LSHFilter, axis int, delta float64) error {
	store, err := s.fork()
	if err != nil {
		return err
	}
	fork := &session{cfg: s.cfg, logger: s.logger, store: store, signer: s.signer}

	idx, err := fork.newIndex(kind)
	if err != nil {
		return err
	}
	if err := idx.Build(store.Records()); err != nil {
		return err
	}

	fmt.Printf("\n=== %s ===\n", kind)
	matches := idx.RangeQuery(box)
	fmt.Printf("Found: %d records in %v..%v\n", len(matches), box.Min, box.Max)
	if len(matches) == 0 {
		return nil
	}

	first := matches[0]
	fmt.Printf("\n[Delete] removing %s\n", first)
	if err := idx.Delete(first.ID()); err != nil {
		return err
	}
	fmt.Printf("Count before: %d, after: %d\n", len(matches), len(idx.RangeQuery(box)))

	if len(matches) > 1 {
		target := matches[1]
		value, err := shiftedValue(target, axis, delta)
		if err != nil {
			return err
		}
		newID, err := idx.Update(target.ID(), axis, value)
		if err != nil {
			return err
		}
		updated, _ := store.Get(newID)
		fmt.Printf("\n[Update] %s -> %s\n", target, updated)
	}

	pipeline, err := meridian.NewPipeline(store, idx, ranker, lsh)
	if err != nil {
		return err
	}
	result, err := pipeline.NewSearch().WithBox(box).WithK(s.cfg.KNN.K).Execute()
	if err != nil {
		return err
	}
	if result.Target == nil {
		return nil
	}

	fmt.Printf("\n[kNN] top %d neighbors of %s\n", s.cfg.KNN.K, result.Target)
	for i, n := range result.Neighbors {
		fmt.Printf(" %d. %s (dist %.2f)\n", i+1, n.Record.Title(), n.Distance)
	}
	fmt.Printf("\n[LSH] records similar to %q\n", result.Target.Title())
	if len(result.Similar) == 0 {
		fmt.Println(" none above threshold")
	}
	for _, m := range result.Similar {
		fmt.Printf(" - %s (similarity %.2f)\n", m.Record.Title(), m.Similarity)
	}
	return nil
}

// shiftedValue returns the attribute of r on axis moved by delta.
func shiftedValue(r *meridian.Record, axis int, delta float64) (float64, error) {
	if axis < 0 || axis >= r.Dimensions() {
		return 0, fmt.Errorf("update axis %d: %w", axis, meridian.ErrInvalidAxis)
	}
	return r.Value(axis) + delta, nil
}

// fork copies the loaded records into a new store.
func (s *session) fork() (*meridian.Store, error) {
	store, err := meridian.NewStore(s.store.Dimensions(),
		meridian.WithStoreLogger(s.logger),
		meridian.WithSignatureSlots(s.store.SignatureSlots()))
	if err != nil {
		return nil, err
	}
	records := s.store.Records()
	drafts := make([]meridian.RecordDraft, len(records))
	for i, r := range records {
		drafts[i] = meridian.RecordDraft{Title: r.Title(), Vector: r.Vector(), Signature: r.Signature()}
	}
	if _, err := store.Load(drafts); err != nil {
		return nil, err
	}
	return store, nil
}

func queryCmd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	c := commonFlags(flags)
	minFlag := flags.String("min", "", "comma-separated lower bounds (overrides config)")
	maxFlag := flags.String("max", "", "comma-separated upper bounds (overrides config)")
	limit := flags.Int("limit", 20, "maximum records printed (0 = all)")
	flags.Parse(args)

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	box, err := s.queryBox(*minFlag, *maxFlag)
	if err != nil {
		return err
	}
	kinds, err := s.kinds()
	if err != nil {
		return err
	}

	for _, kind := range kinds {
		idx, err := s.newIndex(kind)
		if err != nil {
			return err
		}
		if err := idx.Build(s.store.Records()); err != nil {
			return err
		}
		start := time.Now()
		all, err := idx.NewSearch().WithBox(box).Execute()
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		fmt.Printf("\n%s: %d matches in %v\n", kind, len(all), elapsed)
		shown := all
		if *limit > 0 && len(shown) > *limit {
			shown = shown[:*limit]
		}
		for _, r := range shown {
			fmt.Printf(" %s\n", r)
		}
	}
	return nil
}

func benchCmd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("bench", flag.ExitOnError)
	c := commonFlags(flags)
	step := flags.Int("step", 50000, "dataset size increment")
	inserts := flags.Int("inserts", 100, "random re-inserts timed per size")
	seed := flags.Int64("seed", 1, "random seed for inserts")
	flags.Parse(args)

	if *step <= 0 {
		return fmt.Errorf("step must be positive")
	}

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	box, err := s.queryBox("", "")
	if err != nil {
		return err
	}
	// every kind unless -kind narrows it
	kinds := meridian.SpatialIndexKinds()
	if *c.kind != "" {
		if kinds, err = s.kinds(); err != nil {
			return err
		}
	}

	records := s.store.Records()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Index\tSize\tBuild\tInsert\tQuery\tMatches\t")

	rng := rand.New(rand.NewSource(*seed))
	for _, kind := range kinds {
		for n := *step; n <= len(records); n += *step {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx, err := s.newIndex(kind)
			if err != nil {
				return err
			}

			start := time.Now()
			if err := idx.Build(records[:n]); err != nil {
				return err
			}
			build := time.Since(start)

			start = time.Now()
			for i := 0; i < *inserts; i++ {
				if err := idx.Insert(records[rng.Intn(n)]); err != nil {
					return err
				}
			}
			insert := time.Since(start)

			start = time.Now()
			matches := idx.RangeQuery(box)
			query := time.Since(start)

			fmt.Fprintf(w, "%s\t%d\t%v\t%v\t%v\t%d\t\n", kind, n, build, insert, query, len(matches))
			s.logger.Debug("bench row", slog.String("kind", string(kind)), slog.Int("size", n))
		}
	}
	return w.Flush()
}
