package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wizenheimer/meridian"
)

// CSVOptions describes a delimited text layout. Columns are 0-based.
type CSVOptions struct {
	Comma       rune
	SkipHeader  bool
	TitleColumn int
	TextColumn  int // -1 for no text feature
	Attributes  []Attribute
	MinFirst    *float64
	Limit       int // 0 = no limit
}

// DefaultCSVOptions returns the movies layout: ';' separated with a header,
// title in column 1, genres in column 6, budget (8), popularity (11) and
// runtime (10), budgets of 100 or less dropped.
func DefaultCSVOptions() CSVOptions {
	minFirst := 100.0
	return CSVOptions{
		Comma:       ';',
		SkipHeader:  true,
		TitleColumn: 1,
		TextColumn:  6,
		Attributes: []Attribute{
			{Name: "budget", Column: 8, Required: true},
			{Name: "popularity", Column: 11, Required: true},
			{Name: "runtime", Column: 10},
		},
		MinFirst: &minFirst,
	}
}

// CSVSource reads drafts from delimited text.
type CSVSource struct {
	r      io.Reader
	opts   CSVOptions
	rules  rowRules
	logger *meridian.Logger
}

// NewCSVSource creates a source reading from r.
func NewCSVSource(r io.Reader, opts CSVOptions, signer *meridian.MinHasher, logger *meridian.Logger) (*CSVSource, error) {
	rules := rowRules{
		attributes: opts.Attributes,
		minFirst:   opts.MinFirst,
		limit:      opts.Limit,
		signer:     signer,
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}
	if opts.Comma == 0 {
		opts.Comma = ';'
	}
	if logger == nil {
		logger = meridian.NoopLogger()
	}
	return &CSVSource{r: r, opts: opts, rules: rules, logger: logger}, nil
}

// LoadCSVFile opens path and loads it with opts.
func LoadCSVFile(ctx context.Context, path string, opts CSVOptions, signer *meridian.MinHasher, logger *meridian.Logger) ([]meridian.RecordDraft, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer f.Close()

	src, err := NewCSVSource(f, opts, signer, logger)
	if err != nil {
		return nil, Stats{}, err
	}
	return src.Load(ctx)
}

// Load reads rows until EOF, the row limit or ctx cancellation.
func (s *CSVSource) Load(ctx context.Context) ([]meridian.RecordDraft, Stats, error) {
	reader := csv.NewReader(s.r)
	reader.Comma = s.opts.Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var (
		drafts []meridian.RecordDraft
		stats  Stats
		line   int
	)
	values := make([]string, len(s.opts.Attributes))

	for !s.rules.full(len(drafts)) {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 && s.opts.SkipHeader {
			continue
		}
		stats.Rows++

		for i, attr := range s.opts.Attributes {
			values[i] = field(fields, attr.Column)
		}
		text := ""
		if s.opts.TextColumn >= 0 {
			text = field(fields, s.opts.TextColumn)
		}

		d, err := s.rules.draft(field(fields, s.opts.TitleColumn), text, values)
		if err != nil {
			stats.Skipped++
			s.logger.Debug("row skipped", "line", line, "error", err)
			continue
		}
		drafts = append(drafts, d)
	}

	stats.Loaded = len(drafts)
	s.logger.Info("csv loaded", "rows", stats.Rows, "loaded", stats.Loaded, "skipped", stats.Skipped)
	return drafts, stats, nil
}

// field returns fields[i], or "" when the row is short.
func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}
