package loader

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wizenheimer/meridian"

	_ "modernc.org/sqlite"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteOptions describes a table layout. Attribute.Name is the column name.
type SQLiteOptions struct {
	Table      string
	TitleName  string
	TextName   string // empty for no text feature
	Attributes []Attribute
	MinFirst   *float64
	Limit      int // 0 = no limit
}

// SQLiteSource reads drafts from one table, in rowid order.
type SQLiteSource struct {
	db     *sql.DB
	opts   SQLiteOptions
	rules  rowRules
	logger *meridian.Logger
}

// OpenSQLite opens a SQLite database file with the pure-Go driver.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewSQLiteSource creates a source over db. Table and column names must be
// plain identifiers.
func NewSQLiteSource(db *sql.DB, opts SQLiteOptions, signer *meridian.MinHasher, logger *meridian.Logger) (*SQLiteSource, error) {
	rules := rowRules{
		attributes: opts.Attributes,
		minFirst:   opts.MinFirst,
		limit:      opts.Limit,
		signer:     signer,
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}

	names := []string{opts.Table, opts.TitleName}
	if opts.TextName != "" {
		names = append(names, opts.TextName)
	}
	for _, a := range opts.Attributes {
		names = append(names, a.Name)
	}
	for _, n := range names {
		if !identifier.MatchString(n) {
			return nil, fmt.Errorf("invalid sql identifier %q", n)
		}
	}

	if logger == nil {
		logger = meridian.NoopLogger()
	}
	return &SQLiteSource{db: db, opts: opts, rules: rules, logger: logger}, nil
}

func (s *SQLiteSource) query() string {
	cols := []string{s.opts.TitleName}
	if s.opts.TextName != "" {
		cols = append(cols, s.opts.TextName)
	} else {
		cols = append(cols, "''")
	}
	for _, a := range s.opts.Attributes {
		cols = append(cols, a.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), s.opts.Table)
}

// Load reads rows in rowid order until the row limit.
func (s *SQLiteSource) Load(ctx context.Context) ([]meridian.RecordDraft, Stats, error) {
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return nil, Stats{}, fmt.Errorf("query %s: %w", s.opts.Table, err)
	}
	defer rows.Close()

	var (
		drafts []meridian.RecordDraft
		stats  Stats
	)
	raw := make([]any, 2+len(s.opts.Attributes))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	values := make([]string, len(s.opts.Attributes))

	for !s.rules.full(len(drafts)) && rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, stats, fmt.Errorf("scan %s: %w", s.opts.Table, err)
		}
		stats.Rows++

		for i := range values {
			values[i] = text(raw[2+i])
		}
		d, err := s.rules.draft(text(raw[0]), text(raw[1]), values)
		if err != nil {
			stats.Skipped++
			s.logger.Debug("row skipped", "row", stats.Rows, "error", err)
			continue
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, stats, fmt.Errorf("iterate %s: %w", s.opts.Table, err)
	}

	stats.Loaded = len(drafts)
	s.logger.Info("sqlite loaded", "table", s.opts.Table, "rows", stats.Rows, "loaded", stats.Loaded, "skipped", stats.Skipped)
	return drafts, stats, nil
}

// text renders a scanned SQLite value as the string the row rules parse.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
