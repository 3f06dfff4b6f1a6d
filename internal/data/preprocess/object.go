package preprocess

import (
	"fmt"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Object binds one record attribute to a registered transform.  Objects are
// resolved against the registry at construction, so a misconfigured pipeline
// fails before any data is touched.
type Object struct {
	// Attribute is the record key the transform reads and replaces.
	Attribute string
	// From and To are the dtype names selecting the registered transform.
	From string
	To   string
	// Settings are the transform options as given at construction.
	Settings Settings
	// InMemory materialises transformed values for the whole dataset at
	// construction time.
	InMemory bool
	// Online re-applies the transform on every access instead of storing
	// the result.  Online objects never use the cache.
	Online bool

	transform Transform
}

// ObjectOption mutates an Object before resolution.
type ObjectOption func(*Object)

// WithInMemory toggles whole-dataset materialisation.
func WithInMemory(inMemory bool) ObjectOption {
	return func(o *Object) { o.InMemory = inMemory }
}

// WithOnline toggles per-access transformation.
func WithOnline(online bool) ObjectOption {
	return func(o *Object) { o.Online = online }
}

// NewObject resolves (from, to, settings) against the registry and returns a
// ready Object.  Defaults: InMemory true, Online false.
func NewObject(attribute, from, to string, settings Settings, opts ...ObjectOption) (*Object, error) {
	if attribute == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "preprocessing object needs an attribute name")
	}
	o := &Object{
		Attribute: attribute,
		From:      from,
		To:        to,
		Settings:  settings,
		InMemory:  true,
	}
	for _, opt := range opts {
		opt(o)
	}
	t, err := Resolve(from, to, settings)
	if err != nil {
		return nil, err
	}
	o.transform = t
	return o, nil
}

// Key returns the transform registry key of the object.
func (o *Object) Key() string { return o.transform.Key() }

// ApplyValue runs the transform on a single value.
func (o *Object) ApplyValue(v any) (any, error) {
	return o.transform.Apply(v)
}

// ApplyTo transforms the object's attribute in rec, in place.
func (o *Object) ApplyTo(rec Record) error {
	v, ok := rec[o.Attribute]
	if !ok {
		return errors.New(errors.ErrCodeMissingAttribute,
			fmt.Sprintf("record has no attribute %q", o.Attribute))
	}
	out, err := o.transform.Apply(v)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnknown,
			fmt.Sprintf("transform %s on attribute %q", o.Key(), o.Attribute))
	}
	rec[o.Attribute] = out
	return nil
}

// List is an ordered preprocessing pipeline.
type List struct {
	objects []*Object
}

// NewList builds a pipeline from objects, in application order.
func NewList(objects ...*Object) *List {
	return &List{objects: objects}
}

// Objects returns the pipeline entries in order.
func (l *List) Objects() []*Object {
	if l == nil {
		return nil
	}
	return l.objects
}

// Append adds objects to the end of the pipeline.
func (l *List) Append(objects ...*Object) {
	l.objects = append(l.objects, objects...)
}

// Apply runs every transform on a copy of rec and returns the transformed
// record.  The input record is never mutated.
func (l *List) Apply(rec Record) (Record, error) {
	out := rec.Clone()
	for _, o := range l.Objects() {
		if err := o.ApplyTo(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ApplyOffline runs only the non-online transforms; used at dataset
// construction when online objects are deferred to access time.
func (l *List) ApplyOffline(rec Record) (Record, error) {
	out := rec.Clone()
	for _, o := range l.Objects() {
		if o.Online {
			continue
		}
		if err := o.ApplyTo(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ApplyOnline runs only the online transforms; used on each Get.
func (l *List) ApplyOnline(rec Record) (Record, error) {
	out := rec.Clone()
	for _, o := range l.Objects() {
		if !o.Online {
			continue
		}
		if err := o.ApplyTo(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// HasOnline reports whether any pipeline entry is online.
func (l *List) HasOnline() bool {
	for _, o := range l.Objects() {
		if o.Online {
			return true
		}
	}
	return false
}
