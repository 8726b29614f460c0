// Package memstore provides an in-memory implementation of store.Gateway
// for unit tests that need realistic find/insert/update semantics without a
// live MongoDB instance.
//
// It supports exact-match filters, the comparison operators ($gt/$gte/$lt/
// $lte/$ne), $regex/$options, $or, a substring-based $text approximation,
// and the atomic $inc / $setOnInsert pattern the rate limiter depends on.
package memstore

import (
	"context"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

// Fake is an in-memory store.Gateway.
type Fake struct {
	mu    sync.Mutex
	colls map[string][]bson.M
}

// New creates an empty fake store.
func New() *Fake {
	return &Fake{colls: make(map[string][]bson.M)}
}

func (f *Fake) docs(name string) []bson.M {
	return f.colls[name]
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeInto(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func matches(doc bson.M, filter bson.M) bool {
	for k, want := range filter {
		switch k {
		case "$or":
			if !matchesOr(doc, want) {
				return false
			}
			continue
		case "$text":
			if !matchesText(doc, want) {
				return false
			}
			continue
		}

		got := doc[k]
		if ops, ok := want.(bson.M); ok && isOperatorDoc(ops) {
			if !matchesOperators(got, ops) {
				return false
			}
			continue
		}
		if _, ok := doc[k]; !ok {
			return false
		}
		if !reflect.DeepEqual(got, want) {
			if !looselyEqual(got, want) {
				if !arrayContains(got, want) {
					return false
				}
			}
		}
	}
	return true
}

// matchesOr reproduces MongoDB's "$or": [{...}, {...}] — the document
// matches if any one of the sub-filters matches.
func matchesOr(doc bson.M, want any) bool {
	subFilters, ok := toFilterList(want)
	if !ok {
		return false
	}
	for _, sub := range subFilters {
		if matches(doc, sub) {
			return true
		}
	}
	return false
}

func toFilterList(want any) ([]bson.M, bool) {
	switch v := want.(type) {
	case []bson.M:
		return v, true
	case bson.A:
		out := make([]bson.M, 0, len(v))
		for _, el := range v {
			if m, ok := el.(bson.M); ok {
				out = append(out, m)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// matchesText emulates a MongoDB "$text": {"$search": "..."} query as a
// case-insensitive substring match across every string field in doc.
func matchesText(doc bson.M, want any) bool {
	ops, ok := want.(bson.M)
	if !ok {
		return false
	}
	search, ok := ops["$search"].(string)
	if !ok || search == "" {
		return false
	}
	search = strings.ToLower(search)
	for _, v := range doc {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), search) {
			return true
		}
	}
	return false
}

// arrayContains reproduces MongoDB's implicit semantics for querying an
// array field with a scalar value: it matches if the scalar equals any
// element of the array.
func arrayContains(got, want any) bool {
	arr, ok := got.(bson.A)
	if !ok {
		return false
	}
	for _, el := range arr {
		if reflect.DeepEqual(el, want) || looselyEqual(el, want) {
			return true
		}
	}
	return false
}

// isOperatorDoc reports whether m looks like {"$gt": ...} rather than a
// literal document value to compare against.
func isOperatorDoc(m bson.M) bool {
	for k := range m {
		if len(k) > 0 && k[0] == '$' {
			return true
		}
		return false
	}
	return false
}

func matchesOperators(got any, ops bson.M) bool {
	if pattern, ok := ops["$regex"]; ok {
		return matchesRegex(got, pattern, ops["$options"])
	}
	for op, want := range ops {
		switch op {
		case "$gt":
			if compare(got, want) <= 0 {
				return false
			}
		case "$gte":
			if compare(got, want) < 0 {
				return false
			}
		case "$lt":
			if compare(got, want) >= 0 {
				return false
			}
		case "$lte":
			if compare(got, want) > 0 {
				return false
			}
		case "$ne":
			if reflect.DeepEqual(got, want) || looselyEqual(got, want) || arrayContains(got, want) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// matchesRegex reproduces MongoDB's "$regex"/"$options" field match. A
// malformed pattern fails the match rather than panicking.
func matchesRegex(got, pattern, opts any) bool {
	s, ok := got.(string)
	if !ok {
		return false
	}
	p, ok := pattern.(string)
	if !ok {
		return false
	}
	if o, ok := opts.(string); ok && strings.Contains(o, "i") {
		p = "(?i)" + p
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// compare returns -1/0/1 comparing got against want, supporting the numeric
// and time.Time types the domain packages filter on. Incomparable types
// sort as equal (0) to fail open rather than panic.
func compare(got, want any) int {
	if gt, ok := got.(time.Time); ok {
		if wt, ok := want.(time.Time); ok {
			switch {
			case gt.Before(wt):
				return -1
			case gt.After(wt):
				return 1
			default:
				return 0
			}
		}
	}
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		switch {
		case gf < wf:
			return -1
		case gf > wf:
			return 1
		default:
			return 0
		}
	}
	return 0
}

// looselyEqual compares numeric types leniently since BSON round-tripping
// can normalize int vs int32 vs int64.
func looselyEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func (f *Fake) FindOne(ctx context.Context, collection string, filter bson.M, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, doc := range f.docs(collection) {
		if matches(doc, filter) {
			return decodeInto(doc, out)
		}
	}
	return store.ErrNotFound
}

func (f *Fake) Find(ctx context.Context, collection string, filter bson.M, out any, opts ...*options.FindOptionsBuilder) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []bson.M
	for _, doc := range f.docs(collection) {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}

	raw, err := bson.Marshal(bson.M{"items": matched})
	if err != nil {
		return err
	}
	var wrapper struct {
		Items bson.Raw `bson:"items"`
	}
	if err := bson.Unmarshal(raw, &wrapper); err != nil {
		return err
	}
	return bson.Unmarshal(wrapper.Items, out)
}

func (f *Fake) InsertOne(ctx context.Context, collection string, doc any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := toDoc(doc)
	if err != nil {
		return "", err
	}
	id := bson.NewObjectID()
	if _, ok := m["_id"]; !ok {
		m["_id"] = id
	}
	f.colls[collection] = append(f.colls[collection], m)
	return id.Hex(), nil
}

func (f *Fake) UpdateOne(ctx context.Context, collection string, filter, update bson.M, upsert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	docs := f.colls[collection]
	for i, doc := range docs {
		if matches(doc, filter) {
			docs[i] = applyUpdate(doc, update)
			f.colls[collection] = docs
			return nil
		}
	}

	if !upsert {
		return store.ErrNotFound
	}

	newDoc := bson.M{}
	for k, v := range filter {
		newDoc[k] = v
	}
	newDoc = applyUpdate(newDoc, update)
	f.colls[collection] = append(f.colls[collection], newDoc)
	return nil
}

func (f *Fake) FindOneAndUpdate(ctx context.Context, collection string, filter, update bson.M, upsert bool, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	docs := f.colls[collection]
	for i, doc := range docs {
		if matches(doc, filter) {
			updated := applyUpdate(doc, update)
			docs[i] = updated
			f.colls[collection] = docs
			return decodeInto(updated, out)
		}
	}

	if !upsert {
		return store.ErrNotFound
	}

	newDoc := bson.M{}
	for k, v := range filter {
		newDoc[k] = v
	}
	newDoc = applyUpdate(newDoc, update)
	f.colls[collection] = append(f.colls[collection], newDoc)
	return decodeInto(newDoc, out)
}

func (f *Fake) DeleteOne(ctx context.Context, collection string, filter bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	docs := f.colls[collection]
	for i, doc := range docs {
		if matches(doc, filter) {
			f.colls[collection] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *Fake) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, doc := range f.docs(collection) {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// applyUpdate supports the subset of MongoDB update operators the domain
// packages issue: $set, $inc, $setOnInsert, $push, and a bare replacement
// document when none of those keys are present.
func applyUpdate(doc bson.M, update bson.M) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = v
	}

	hasOperator := false
	if set, ok := update["$set"].(bson.M); ok {
		hasOperator = true
		for k, v := range set {
			out[k] = v
		}
	}
	if inc, ok := update["$inc"].(bson.M); ok {
		hasOperator = true
		for k, v := range inc {
			delta, _ := toFloat(v)
			cur, _ := toFloat(out[k])
			out[k] = int(cur + delta)
		}
	}
	if setOnInsert, ok := update["$setOnInsert"].(bson.M); ok {
		hasOperator = true
		for k, v := range setOnInsert {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	if push, ok := update["$push"].(bson.M); ok {
		hasOperator = true
		for k, v := range push {
			arr, _ := out[k].(bson.A)
			out[k] = append(arr, v)
		}
	}

	if !hasOperator {
		return update
	}
	return out
}
