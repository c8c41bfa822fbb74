package phenotype

import (
	"encoding/csv"
	"io"
	"maps"
	"math"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// DefaultMetadataColumns are never treated as trait columns.
var DefaultMetadataColumns = []string{
	"studyName", "germplasmName", "germplasmDbId", "programDbId",
	"programname", "programdescription", "studydbid", "studydescription",
	"studydesign", "fieldtrialisplannedtobegenotyped",
	"fieldtrialisplannedtocross", "plantingdate", "harvestdate",
	"locationdbid", "studyYear", "locationName", "observationlevel",
	"observationunitdbid", "observationunitname", "replicate", "block",
	"plotNumber", "entryType",
}

// DefaultMetadataRenames maps lower-cased raw headers to canonical names.
var DefaultMetadataRenames = map[string]string{
	"studyname":     "studyName",
	"studyyear":     "studyYear",
	"locationname":  "locationName",
	"germplasmname": "germplasmName",
	"germplasmdbid": "germplasmDbId",
	"programdbid":   "programDbId",
	"plotnumber":    "plotNumber",
	"entrytype":     "entryType",
	"blocknumber":   "block",
}

// ColumnConfig describes how a wide phenotype export maps onto
// observations. It is passed explicitly; there is no package-level state.
type ColumnConfig struct {
	AccessionColumn string `yaml:"accession_column"`
	// EnvironmentColumn, when present in the header, is used verbatim.
	// Otherwise the id is composed from the location, year and study columns.
	EnvironmentColumn string `yaml:"environment_column"`
	LocationColumn    string `yaml:"location_column"`
	YearColumn        string `yaml:"year_column"`
	StudyColumn       string `yaml:"study_column"`

	MetadataColumns []string          `yaml:"metadata_columns"`
	Renames         map[string]string `yaml:"renames"`

	// TraitAbbreviations maps a raw trait header to its short name before
	// standardization.
	TraitAbbreviations    map[string]string `yaml:"trait_abbreviations"`
	StandardizeTraitNames bool              `yaml:"standardize_trait_names"`

	// MinObservedFraction drops candidate trait columns whose fraction of
	// non-missing cells is below it. Zero keeps every column.
	MinObservedFraction float64 `yaml:"min_observed_fraction"`

	MissingTokens []string `yaml:"missing_tokens"`
}

// DefaultColumnConfig returns the column layout of the breeding database
// export.
func DefaultColumnConfig() ColumnConfig {
	return ColumnConfig{
		AccessionColumn:       "germplasmName",
		EnvironmentColumn:     "environment_id",
		LocationColumn:        "locationName",
		YearColumn:            "studyYear",
		StudyColumn:           "studyName",
		MetadataColumns:       slices.Clone(DefaultMetadataColumns),
		Renames:               maps.Clone(DefaultMetadataRenames),
		StandardizeTraitNames: true,
		MissingTokens:         []string{"", "NA", "NaN", "nan", "."},
	}
}

var (
	punctRun  = regexp.MustCompile(`[()]`)
	underRuns = regexp.MustCompile(`__+`)
)

// StandardizeTraitName lower-cases a trait header and folds separators into
// single underscores: "Grain yield - kg/ha" becomes "grain_yield_kg/ha".
func StandardizeTraitName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " - ", "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "|", "_")
	name = punctRun.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, ":", "_")
	name = underRuns.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

// Resolver turns a raw phenotype table into a Table.
type Resolver struct {
	cfg ColumnConfig
}

// NewResolver returns a Resolver for cfg. Empty fields take defaults.
func NewResolver(cfg ColumnConfig) *Resolver {
	def := DefaultColumnConfig()
	if cfg.AccessionColumn == "" {
		cfg.AccessionColumn = def.AccessionColumn
	}
	if cfg.LocationColumn == "" {
		cfg.LocationColumn = def.LocationColumn
	}
	if cfg.YearColumn == "" {
		cfg.YearColumn = def.YearColumn
	}
	if cfg.StudyColumn == "" {
		cfg.StudyColumn = def.StudyColumn
	}
	if cfg.MetadataColumns == nil {
		cfg.MetadataColumns = def.MetadataColumns
	}
	if cfg.Renames == nil {
		cfg.Renames = def.Renames
	}
	if cfg.MissingTokens == nil {
		cfg.MissingTokens = def.MissingTokens
	}
	return &Resolver{cfg: cfg}
}

// layout is the resolved column positions for one header.
type layout struct {
	accession int
	env       int
	location  int
	year      int
	study     int
	trait     int
	traitName string
}

func (r *Resolver) canonical(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if renamed, ok := r.cfg.Renames[strings.ToLower(h)]; ok {
			h = renamed
		}
		out[i] = h
	}
	return out
}

func (r *Resolver) traitName(raw string) string {
	name := raw
	if abbrev, ok := r.cfg.TraitAbbreviations[raw]; ok {
		name = abbrev
	}
	if r.cfg.StandardizeTraitNames {
		name = StandardizeTraitName(name)
	}
	return name
}

// resolve locates the id columns and exactly one trait column.
func (r *Resolver) resolve(header []string, records [][]string) (layout, error) {
	l := layout{accession: -1, env: -1, location: -1, year: -1, study: -1, trait: -1}
	structural := make(map[string]struct{}, len(r.cfg.MetadataColumns)+5)
	for _, c := range r.cfg.MetadataColumns {
		structural[c] = struct{}{}
	}
	for _, c := range []string{r.cfg.AccessionColumn, r.cfg.EnvironmentColumn, r.cfg.LocationColumn, r.cfg.YearColumn, r.cfg.StudyColumn} {
		if c != "" {
			structural[c] = struct{}{}
		}
	}

	var candidates []int
	for i, h := range header {
		switch h {
		case r.cfg.AccessionColumn:
			l.accession = i
		case r.cfg.EnvironmentColumn:
			l.env = i
		case r.cfg.LocationColumn:
			l.location = i
		case r.cfg.YearColumn:
			l.year = i
		case r.cfg.StudyColumn:
			l.study = i
		}
		if _, ok := structural[h]; !ok {
			candidates = append(candidates, i)
		}
	}

	if l.accession < 0 {
		return l, errors.NewSchemaError("phenotype", r.cfg.AccessionColumn, "accession column not found", header)
	}
	if l.env < 0 && l.study < 0 {
		return l, errors.NewSchemaError("phenotype", r.cfg.StudyColumn, "no environment or study column found", header)
	}

	if r.cfg.MinObservedFraction > 0 && len(records) > 0 {
		kept := candidates[:0:0]
		for _, c := range candidates {
			observed := 0
			for _, rec := range records {
				if !r.isMissing(rec[c]) {
					observed++
				}
			}
			if float64(observed)/float64(len(records)) >= r.cfg.MinObservedFraction {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	if len(candidates) != 1 {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = r.traitName(header[c])
		}
		return l, errors.NewSchemaError("phenotype", "trait",
			"expected exactly one trait column, found "+strconv.Itoa(len(candidates)), names)
	}
	l.trait = candidates[0]
	l.traitName = r.traitName(header[l.trait])
	return l, nil
}

func (r *Resolver) isMissing(cell string) bool {
	return slices.Contains(r.cfg.MissingTokens, strings.TrimSpace(cell))
}

func cell(rec []string, i int) string {
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Read parses a CSV phenotype export into a Table.
func (r *Resolver) Read(rd io.Reader) (*Table, error) {
	reader := csv.NewReader(rd)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError("phenotype", "header", "file is empty", nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read phenotype header")
	}
	header = r.canonical(header)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read phenotype rows")
	}

	l, err := r.resolve(header, records)
	if err != nil {
		return nil, err
	}

	obs := make([]Observation, 0, len(records))
	for n, rec := range records {
		raw := cell(rec, l.trait)
		value := math.NaN()
		if !r.isMissing(raw) {
			value, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.NewSchemaError("phenotype", l.traitName,
					"non-numeric value "+strconv.Quote(raw)+" on line "+strconv.Itoa(n+2), nil)
			}
		}

		env := cell(rec, l.env)
		if env == "" {
			env = EnvironmentID(cell(rec, l.location), cell(rec, l.year), cell(rec, l.study))
		}
		acc := cell(rec, l.accession)
		if acc == "" || env == "" {
			continue
		}
		obs = append(obs, Observation{AccessionID: acc, EnvironmentID: env, Value: value})
	}
	return NewTable(l.traitName, obs)
}

// ReadFile opens path and calls Read.
func (r *Resolver) ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open phenotype file %s", path)
	}
	defer f.Close()
	return r.Read(f)
}
