// Package dataset provides index-addressable drug-target datasets: delimited
// file loading through a name-keyed factory, deterministic splitting, and a
// batching loader.
package dataset

import (
	"fmt"

	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Canonical record attributes produced by the factory loaders.
const (
	AttrDrug   = "drug"
	AttrTarget = "target"
	AttrLabel  = "label"
)

// Dataset is an index-addressable collection of preprocessed records.
// Subsets share the backing slice through an index view, so splitting never
// copies sample data.
type Dataset struct {
	name    string
	records []preprocess.Record
	indices []int
	list    *preprocess.List
}

// New wraps already-preprocessed records.  list carries the pipeline so that
// online transforms can run on access; nil means no online stage.
func New(name string, records []preprocess.Record, list *preprocess.List) *Dataset {
	indices := make([]int, len(records))
	for i := range indices {
		indices[i] = i
	}
	return &Dataset{name: name, records: records, indices: indices, list: list}
}

// Name returns the dataset name, with subset suffixes added by Split.
func (d *Dataset) Name() string { return d.name }

// Len returns the number of addressable samples.
func (d *Dataset) Len() int { return len(d.indices) }

// Get returns sample i with online transforms applied.  Records returned to
// callers are copies; mutating them does not affect the dataset.
func (d *Dataset) Get(i int) (preprocess.Record, error) {
	if i < 0 || i >= len(d.indices) {
		return nil, errors.Newf(errors.ErrCodeInvalidParam,
			"index %d out of range [0,%d)", i, len(d.indices))
	}
	rec := d.records[d.indices[i]]
	if d.list != nil && d.list.HasOnline() {
		return d.list.ApplyOnline(rec)
	}
	return rec.Clone(), nil
}

// Subset returns a view over the given positions of d.  Positions index into
// d, not the backing store, so subsetting composes.
func (d *Dataset) Subset(positions []int) (*Dataset, error) {
	indices := make([]int, len(positions))
	for i, p := range positions {
		if p < 0 || p >= len(d.indices) {
			return nil, errors.Newf(errors.ErrCodeInvalidParam,
				"subset position %d out of range [0,%d)", p, len(d.indices))
		}
		indices[i] = d.indices[p]
	}
	return &Dataset{
		name:    fmt.Sprintf("%s/subset", d.name),
		records: d.records,
		indices: indices,
		list:    d.list,
	}, nil
}

func (d *Dataset) named(suffix string) *Dataset {
	clone := *d
	clone.name = fmt.Sprintf("%s/%s", d.name, suffix)
	return &clone
}

// attributeString reads a string attribute of sample i without the online
// stage; grouping splits need raw values, not encoded ones.
func (d *Dataset) attributeString(i int, attr string) (string, error) {
	rec := d.records[d.indices[i]]
	v, ok := rec[attr]
	if !ok {
		return "", errors.New(errors.ErrCodeMissingAttribute,
			fmt.Sprintf("record has no attribute %q", attr))
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.New(errors.ErrCodeMalformedRow,
			fmt.Sprintf("attribute %q must be a string for grouped splits, got %T", attr, v))
	}
	return s, nil
}
