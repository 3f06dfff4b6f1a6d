package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// TableSpec describes one delimited drug-target table: how to find the drug,
// target, and label columns.  Named datasets ship fixed specs; the generic
// "csv" entry takes the caller's.
type TableSpec struct {
	// Comma is the field delimiter.  Zero means whitespace-delimited lines
	// read with strings.Fields instead of encoding/csv.
	Comma rune
	// HasHeader selects column lookup by name; otherwise by index.
	HasHeader bool
	// DrugColumn, TargetColumn, LabelColumn are header names when HasHeader
	// is set, decimal column indices otherwise.
	DrugColumn   string
	TargetColumn string
	LabelColumn  string
}

// LoadOptions parameterise Factory.Load.
type LoadOptions struct {
	// Path is the table file location.
	Path string
	// List is the preprocessing pipeline; nil loads raw records.
	List *preprocess.List
	// SkipInvalid drops rows that fail parsing or preprocessing, with a
	// warn log, instead of failing the whole load.
	SkipInvalid bool
	// Table overrides the column mapping; required for the "csv" dataset.
	Table *TableSpec
	// Workers, Cache, and Metrics feed preprocess.Materialize.
	Workers int
	Cache   *preprocess.Cache
	Metrics monitoring.TrainingMetrics
	// Logger defaults to the process logger.
	Logger logging.Logger
}

var builtinTables = map[string]TableSpec{
	"davis":        {Comma: ',', HasHeader: true, DrugColumn: "SMILES", TargetColumn: "Target Sequence", LabelColumn: "Label"},
	"kiba":         {Comma: ',', HasHeader: true, DrugColumn: "SMILES", TargetColumn: "Target Sequence", LabelColumn: "Label"},
	"bindingdb_kd": {Comma: '\t', HasHeader: true, DrugColumn: "Ligand SMILES", TargetColumn: "BindingDB Target Chain Sequence", LabelColumn: "Kd (nM)"},
	"human":        {DrugColumn: "0", TargetColumn: "1", LabelColumn: "2"},
	"celegans":     {DrugColumn: "0", TargetColumn: "1", LabelColumn: "2"},
}

// Factory resolves dataset names to loaders.
type Factory struct {
	mu     sync.RWMutex
	tables map[string]TableSpec
}

// NewFactory returns a factory with the built-in named datasets registered.
func NewFactory() *Factory {
	tables := make(map[string]TableSpec, len(builtinTables))
	for k, v := range builtinTables {
		tables[k] = v
	}
	return &Factory{tables: tables}
}

// Register adds or replaces a named table spec.
func (f *Factory) Register(name string, spec TableSpec) {
	f.mu.Lock()
	f.tables[name] = spec
	f.mu.Unlock()
}

// Names lists the registered dataset names plus "csv", sorted.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := []string{"csv"}
	for k := range f.tables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Load reads, parses, and preprocesses the named dataset.  An unknown name
// is an unsupported-method error.
func (f *Factory) Load(ctx context.Context, name string, opts LoadOptions) (*Dataset, error) {
	var spec TableSpec
	switch {
	case name == "csv":
		if opts.Table == nil {
			return nil, errors.New(errors.ErrCodeInvalidConfig,
				"the csv dataset needs an explicit column mapping")
		}
		spec = *opts.Table
	default:
		f.mu.RLock()
		s, ok := f.tables[name]
		f.mu.RUnlock()
		if !ok {
			return nil, errors.UnsupportedMethod(errors.ErrCodeUnknownDataset, name)
		}
		spec = s
	}

	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	log = log.Named("dataset").With(logging.String("dataset", name))

	file, err := os.Open(opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Resource(errors.ErrCodeFileNotFound,
				fmt.Sprintf("dataset file not found: %s", opts.Path), err)
		}
		return nil, errors.Resource(errors.ErrCodeFileUnreadable,
			fmt.Sprintf("opening dataset file %s", opts.Path), err)
	}
	defer file.Close()

	raw, skipped, err := parseTable(file, spec, opts.SkipInvalid, log)
	if err != nil {
		return nil, err
	}

	records := raw
	if opts.List != nil {
		records, err = preprocess.Materialize(ctx, opts.List, raw, preprocess.MaterializeOptions{
			Workers:     opts.Workers,
			Cache:       opts.Cache,
			SkipInvalid: opts.SkipInvalid,
			Metrics:     opts.Metrics,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		skipped += len(raw) - len(records)
	}

	log.Info("dataset loaded",
		logging.Int("rows", len(records)),
		logging.Int("skipped", skipped),
	)
	return New(name, records, opts.List), nil
}

func parseTable(r io.Reader, spec TableSpec, skipInvalid bool, log logging.Logger) ([]preprocess.Record, int, error) {
	if spec.Comma == 0 {
		return parseWhitespaceTable(r, spec, skipInvalid, log)
	}

	reader := csv.NewReader(r)
	reader.Comma = spec.Comma
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeMalformedRow, "parsing delimited table")
	}
	if len(rows) == 0 {
		return nil, 0, errors.New(errors.ErrCodeMalformedRow, "dataset table is empty")
	}

	drugIdx, targetIdx, labelIdx := -1, -1, -1
	start := 0
	if spec.HasHeader {
		for i, col := range rows[0] {
			switch strings.TrimSpace(col) {
			case spec.DrugColumn:
				drugIdx = i
			case spec.TargetColumn:
				targetIdx = i
			case spec.LabelColumn:
				labelIdx = i
			}
		}
		if drugIdx < 0 || targetIdx < 0 || labelIdx < 0 {
			return nil, 0, errors.Newf(errors.ErrCodeMalformedRow,
				"table header lacks required columns %q, %q, %q",
				spec.DrugColumn, spec.TargetColumn, spec.LabelColumn)
		}
		start = 1
	} else {
		if drugIdx, err = columnIndex(spec.DrugColumn); err != nil {
			return nil, 0, err
		}
		if targetIdx, err = columnIndex(spec.TargetColumn); err != nil {
			return nil, 0, err
		}
		if labelIdx, err = columnIndex(spec.LabelColumn); err != nil {
			return nil, 0, err
		}
	}

	var records []preprocess.Record
	skipped := 0
	maxIdx := max3(drugIdx, targetIdx, labelIdx)
	for lineNo, row := range rows[start:] {
		if len(row) <= maxIdx {
			if skipInvalid {
				skipped++
				log.Warn("skipping short row", logging.Int("row", start+lineNo+1), logging.Int("fields", len(row)))
				continue
			}
			return nil, 0, errors.Newf(errors.ErrCodeMalformedRow,
				"row %d has %d fields, need at least %d", start+lineNo+1, len(row), maxIdx+1)
		}
		records = append(records, preprocess.Record{
			AttrDrug:   strings.TrimSpace(row[drugIdx]),
			AttrTarget: strings.TrimSpace(row[targetIdx]),
			AttrLabel:  strings.TrimSpace(row[labelIdx]),
		})
	}
	return records, skipped, nil
}

func parseWhitespaceTable(r io.Reader, spec TableSpec, skipInvalid bool, log logging.Logger) ([]preprocess.Record, int, error) {
	drugIdx, err := columnIndex(spec.DrugColumn)
	if err != nil {
		return nil, 0, err
	}
	targetIdx, err := columnIndex(spec.TargetColumn)
	if err != nil {
		return nil, 0, err
	}
	labelIdx, err := columnIndex(spec.LabelColumn)
	if err != nil {
		return nil, 0, err
	}
	maxIdx := max3(drugIdx, targetIdx, labelIdx)

	var records []preprocess.Record
	skipped := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) <= maxIdx {
			if skipInvalid {
				skipped++
				log.Warn("skipping short row", logging.Int("row", lineNo), logging.Int("fields", len(fields)))
				continue
			}
			return nil, 0, errors.Newf(errors.ErrCodeMalformedRow,
				"row %d has %d fields, need at least %d", lineNo, len(fields), maxIdx+1)
		}
		records = append(records, preprocess.Record{
			AttrDrug:   fields[drugIdx],
			AttrTarget: fields[targetIdx],
			AttrLabel:  fields[labelIdx],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeFileUnreadable, "reading dataset table")
	}
	if len(records) == 0 && skipped == 0 {
		return nil, 0, errors.New(errors.ErrCodeMalformedRow, "dataset table is empty")
	}
	return records, skipped, nil
}

func columnIndex(col string) (int, error) {
	idx := 0
	if col == "" {
		return 0, errors.New(errors.ErrCodeInvalidConfig, "table spec has an empty column reference")
	}
	for i := 0; i < len(col); i++ {
		if col[i] < '0' || col[i] > '9' {
			return 0, errors.Newf(errors.ErrCodeInvalidConfig,
				"headerless tables need numeric column indices, got %q", col)
		}
		idx = idx*10 + int(col[i]-'0')
	}
	return idx, nil
}

func max3(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
