package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Dataset DatasetConfig `yaml:"dataset"`
	Index   IndexConfig   `yaml:"index"`
	KNN     KNNConfig     `yaml:"knn"`
	LSH     LSHConfig     `yaml:"lsh"`
	Query   QueryConfig   `yaml:"query"`
	Log     LogConfig     `yaml:"log"`
}

type DatasetConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // csv | sqlite
	Limit  int    `yaml:"limit"`  // 0 = all rows

	// CSV layout (0-based columns)
	Comma       string `yaml:"comma"`
	TitleColumn int    `yaml:"title_column"`
	TextColumn  int    `yaml:"text_column"`

	// SQLite layout
	Table     string `yaml:"table"`
	TitleName string `yaml:"title_name"`
	TextName  string `yaml:"text_name"`

	Attributes []AttributeConfig `yaml:"attributes"`

	// MinFirst drops rows whose first attribute is not greater than it.
	MinFirst *float64 `yaml:"min_first"`
}

type AttributeConfig struct {
	Name     string `yaml:"name"`
	Column   int    `yaml:"column"`
	Required bool   `yaml:"required"`
}

type IndexConfig struct {
	Kind      string          `yaml:"kind"`
	Hypercube HypercubeConfig `yaml:"hypercube"`
	RTree     RTreeConfig     `yaml:"rtree"`
	RangeTree RangeTreeConfig `yaml:"range_tree"`
}

type HypercubeConfig struct {
	Capacity int `yaml:"capacity"`
	MaxDepth int `yaml:"max_depth"`
}

type RTreeConfig struct {
	LeafCapacity int    `yaml:"leaf_capacity"`
	Fanout       int    `yaml:"fanout"`
	MaxChildren  int    `yaml:"max_children"`
	InsertPolicy string `yaml:"insert_policy"`
}

type RangeTreeConfig struct {
	Primary   int `yaml:"primary"`
	Secondary int `yaml:"secondary"`
}

type KNNConfig struct {
	K      int       `yaml:"k"`
	Scales []float64 `yaml:"scales"`
}

type LSHConfig struct {
	Bands     int      `yaml:"bands"`
	Rows      int      `yaml:"rows"`
	Threshold *float64 `yaml:"threshold"`
	Limit     int      `yaml:"limit"` // < 0 = no cap
}

type QueryConfig struct {
	Min []float64 `yaml:"min"`
	Max []float64 `yaml:"max"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration for the movies dataset: semicolon
// separated, budget/popularity/runtime attributes, budget scaled by 1e6 for
// kNN.
func Default() *Config {
	minFirst := 100.0
	threshold := 0.3
	return &Config{
		Dataset: DatasetConfig{
			Path:        "movies.csv",
			Format:      "csv",
			Comma:       ";",
			TitleColumn: 1,
			TextColumn:  6,
			Table:       "movies",
			TitleName:   "title",
			TextName:    "genres",
			Attributes: []AttributeConfig{
				{Name: "budget", Column: 8, Required: true},
				{Name: "popularity", Column: 11, Required: true},
				{Name: "runtime", Column: 10},
			},
			MinFirst: &minFirst,
		},
		Index: IndexConfig{
			Kind:      "kdtree",
			Hypercube: HypercubeConfig{Capacity: 50, MaxDepth: 30},
			RTree:     RTreeConfig{LeafCapacity: 100, Fanout: 10, MaxChildren: 100, InsertPolicy: "first_child"},
			RangeTree: RangeTreeConfig{Primary: 0, Secondary: 1},
		},
		KNN: KNNConfig{
			K:      5,
			Scales: []float64{1e6, 1, 1},
		},
		LSH: LSHConfig{
			Bands:     5,
			Rows:      4,
			Threshold: &threshold,
			Limit:     5,
		},
		Query: QueryConfig{
			Min: []float64{1000, 2, 60},
			Max: []float64{50000, 50, 180},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configPath over the defaults. An empty path tries
// meridian.yaml and configs/meridian.yaml and falls back to the defaults
// when neither exists.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	// filled by applyDefaults only when the attribute layout is the default one
	cfg.Query = QueryConfig{}
	cfg.KNN.Scales = nil

	if configPath == "" {
		for _, p := range []string{"meridian.yaml", "configs/meridian.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				return cfg, parse(cfg, data)
			}
		}
		applyDefaults(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	return cfg, parse(cfg, data)
}

func parse(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	applyDefaults(cfg)
	return cfg.Validate()
}

func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Dataset.Format == "" {
		cfg.Dataset.Format = def.Dataset.Format
	}
	if cfg.Dataset.Comma == "" {
		cfg.Dataset.Comma = def.Dataset.Comma
	}
	if len(cfg.Dataset.Attributes) == 0 {
		cfg.Dataset.Attributes = def.Dataset.Attributes
	}
	if cfg.Index.Kind == "" {
		cfg.Index.Kind = def.Index.Kind
	}
	if cfg.Index.Hypercube.Capacity <= 0 {
		cfg.Index.Hypercube.Capacity = def.Index.Hypercube.Capacity
	}
	if cfg.Index.Hypercube.MaxDepth <= 0 {
		cfg.Index.Hypercube.MaxDepth = def.Index.Hypercube.MaxDepth
	}
	if cfg.Index.RTree.LeafCapacity <= 0 {
		cfg.Index.RTree.LeafCapacity = def.Index.RTree.LeafCapacity
	}
	if cfg.Index.RTree.Fanout < 2 {
		cfg.Index.RTree.Fanout = def.Index.RTree.Fanout
	}
	if cfg.Index.RTree.MaxChildren < cfg.Index.RTree.Fanout {
		cfg.Index.RTree.MaxChildren = max(def.Index.RTree.MaxChildren, cfg.Index.RTree.Fanout)
	}
	if cfg.Index.RTree.InsertPolicy == "" {
		cfg.Index.RTree.InsertPolicy = def.Index.RTree.InsertPolicy
	}
	if cfg.Dimensions() == def.Dimensions() {
		if len(cfg.KNN.Scales) == 0 {
			cfg.KNN.Scales = def.KNN.Scales
		}
		if len(cfg.Query.Min) == 0 && len(cfg.Query.Max) == 0 {
			cfg.Query = def.Query
		}
	}
	if cfg.KNN.K <= 0 {
		cfg.KNN.K = def.KNN.K
	}
	if cfg.LSH.Bands <= 0 {
		cfg.LSH.Bands = def.LSH.Bands
	}
	if cfg.LSH.Rows <= 0 {
		cfg.LSH.Rows = def.LSH.Rows
	}
	if cfg.LSH.Threshold == nil {
		cfg.LSH.Threshold = def.LSH.Threshold
	}
	if cfg.LSH.Limit == 0 {
		cfg.LSH.Limit = def.LSH.Limit
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Dimensions is the number of configured attributes.
func (c *Config) Dimensions() int {
	return len(c.Dataset.Attributes)
}

// AttributeNames lists the attribute names in axis order.
func (c *Config) AttributeNames() []string {
	names := make([]string, len(c.Dataset.Attributes))
	for i, a := range c.Dataset.Attributes {
		names[i] = a.Name
	}
	return names
}

// Validate checks cross-field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	dim := c.Dimensions()
	switch c.Dataset.Format {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("dataset.format must be csv or sqlite, got %q", c.Dataset.Format)
	}
	if len([]rune(c.Dataset.Comma)) != 1 {
		return fmt.Errorf("dataset.comma must be a single character, got %q", c.Dataset.Comma)
	}
	if len(c.KNN.Scales) > dim {
		return fmt.Errorf("knn.scales has %d entries for %d attributes", len(c.KNN.Scales), dim)
	}
	if q := c.Query; (len(q.Min) != 0 && len(q.Min) != dim) || (len(q.Max) != 0 && len(q.Max) != dim) {
		return fmt.Errorf("query bounds must have %d entries", dim)
	}
	if t := *c.LSH.Threshold; t < 0 || t > 1 {
		return fmt.Errorf("lsh.threshold must be in [0, 1], got %v", t)
	}
	for _, axis := range []int{c.Index.RangeTree.Primary, c.Index.RangeTree.Secondary} {
		if axis < 0 || axis >= dim {
			return fmt.Errorf("range_tree axis %d out of range for %d attributes", axis, dim)
		}
	}
	return nil
}
