// Package memstore is an in-process repository.Store for tests. It evaluates the
// subset of the MongoDB filter language the API produces.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type memoryData struct {
	mu     sync.RWMutex
	docs   []bson.M
	unique [][]string
}

// Memory is a Store kept in process memory. It understands the subset of the
// MongoDB filter language the API produces and reports unique-key violations
// with the same error the driver returns.
type Memory[T any] struct {
	name string
	data *memoryData
	opts repository.Options
}

func New[T any](name string, opts repository.Options, unique ...[]string) *Memory[T] {
	return &Memory[T]{name: name, data: &memoryData{unique: unique}, opts: opts}
}

func (m *Memory[T]) scoped(filter bson.M) bson.M {
	return repository.And(m.opts.Scope, filter)
}

func (m *Memory[T]) Insert(_ context.Context, doc *T) error {
	repository.EnsureID(doc)
	raw, err := toM(doc)
	if err != nil {
		return err
	}

	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if err := m.checkUnique(raw); err != nil {
		return err
	}
	m.data.docs = append(m.data.docs, raw)
	return nil
}

func (m *Memory[T]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return m.FindOne(ctx, bson.M{"_id": id})
}

func (m *Memory[T]) FindOne(_ context.Context, filter bson.M) (*T, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()

	f := m.scoped(filter)
	for _, d := range m.data.docs {
		if matches(d, f) {
			return fromM[T](d)
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Memory[T]) Find(_ context.Context, filter bson.M, q *query.Query) ([]T, error) {
	m.data.mu.RLock()
	var found []bson.M
	if q != nil {
		filter = repository.And(filter, q.Filter)
	}
	f := m.scoped(filter)
	for _, d := range m.data.docs {
		if matches(d, f) {
			found = append(found, d)
		}
	}
	m.data.mu.RUnlock()

	if q != nil {
		sortDocs(found, q.Sort)
		found = window(found, q.Skip, q.Limit)
	}

	out := make([]T, 0, len(found))
	for _, d := range found {
		doc, err := fromM[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (m *Memory[T]) Replace(_ context.Context, doc *T) error {
	raw, err := toM(doc)
	if err != nil {
		return err
	}

	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	i := m.index(bson.M{"_id": repository.IDOf(doc)})
	if i < 0 {
		return repository.ErrNotFound
	}
	if err := m.checkUnique(raw); err != nil {
		return err
	}
	m.data.docs[i] = raw
	return nil
}

func (m *Memory[T]) UpdateFields(_ context.Context, id primitive.ObjectID, fields bson.M) error {
	set, err := toM(fields)
	if err != nil {
		return err
	}

	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	i := m.index(bson.M{"_id": id})
	if i < 0 {
		return repository.ErrNotFound
	}
	updated := bson.M{}
	for k, v := range m.data.docs[i] {
		updated[k] = v
	}
	for k, v := range set {
		updated[k] = v
	}
	if err := m.checkUnique(updated); err != nil {
		return err
	}
	m.data.docs[i] = updated
	return nil
}

func (m *Memory[T]) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	if m.opts.SoftDelete != "" {
		return m.UpdateFields(ctx, id, bson.M{m.opts.SoftDelete: false})
	}

	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	i := m.index(bson.M{"_id": id})
	if i < 0 {
		return repository.ErrNotFound
	}
	m.data.docs = append(m.data.docs[:i], m.data.docs[i+1:]...)
	return nil
}

func (m *Memory[T]) Count(_ context.Context, filter bson.M) (int64, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()

	var n int64
	f := m.scoped(filter)
	for _, d := range m.data.docs {
		if matches(d, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory[T]) Unscoped() repository.Store[T] {
	return &Memory[T]{name: m.name, data: m.data, opts: repository.Options{SoftDelete: m.opts.SoftDelete}}
}

// index returns the position of the first scoped match; callers hold the lock
func (m *Memory[T]) index(filter bson.M) int {
	f := m.scoped(filter)
	for i, d := range m.data.docs {
		if matches(d, f) {
			return i
		}
	}
	return -1
}

func (m *Memory[T]) checkUnique(doc bson.M) error {
	for _, keys := range m.data.unique {
		for _, existing := range m.data.docs {
			if equal(existing["_id"], doc["_id"]) {
				continue
			}
			dup := true
			for _, k := range keys {
				if !equal(existing[k], doc[k]) {
					dup = false
					break
				}
			}
			if dup {
				return duplicateKey(m.name, keys, doc)
			}
		}
	}
	return nil
}

func duplicateKey(coll string, keys []string, doc bson.M) error {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := doc[k]
		if s, ok := v.(string); ok {
			parts = append(parts, fmt.Sprintf("%s: %q", k, s))
		} else if oid, ok := v.(primitive.ObjectID); ok {
			parts = append(parts, fmt.Sprintf("%s: ObjectId('%s')", k, oid.Hex()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
	}
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code: 11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: %s_1 dup key: { %s }",
			coll, strings.Join(keys, "_1_"), strings.Join(parts, ", ")),
	}}}
}

func toM(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromM[T any](d bson.M) (*T, error) {
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, err
	}
	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func window(docs []bson.M, skip, limit int64) []bson.M {
	if skip >= int64(len(docs)) {
		return nil
	}
	docs = docs[skip:]
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

func sortDocs(docs []bson.M, keys bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			c := compareSort(docs[i][k.Key], docs[j][k.Key])
			if c == 0 {
				continue
			}
			if dir, _ := k.Value.(int); dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareSort orders missing values first, as MongoDB does
func compareSort(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	c, _ := compare(a, b)
	return c
}

func matches(doc, filter bson.M) bool {
	for key, cond := range filter {
		if key == "$and" {
			for _, sub := range toList(cond) {
				if m, ok := sub.(bson.M); ok && !matches(doc, m) {
					return false
				}
			}
			continue
		}

		v, present := doc[key]
		ops, isOps := cond.(bson.M)
		if !isOps || !operatorDoc(ops) {
			if !anyElem(v, func(x any) bool { return equal(x, cond) }) {
				return false
			}
			continue
		}
		for op, arg := range ops {
			if !evalOp(op, v, present, arg) {
				return false
			}
		}
	}
	return true
}

func operatorDoc(m bson.M) bool {
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return len(m) > 0
}

func evalOp(op string, v any, present bool, arg any) bool {
	cmp := func(ok func(int) bool) bool {
		return present && anyElem(v, func(x any) bool {
			c, comparable := compare(x, arg)
			return comparable && ok(c)
		})
	}
	switch op {
	case "$ne":
		return !anyElem(v, func(x any) bool { return equal(x, arg) })
	case "$gt":
		return cmp(func(c int) bool { return c > 0 })
	case "$gte":
		return cmp(func(c int) bool { return c >= 0 })
	case "$lt":
		return cmp(func(c int) bool { return c < 0 })
	case "$lte":
		return cmp(func(c int) bool { return c <= 0 })
	case "$in":
		for _, candidate := range toList(arg) {
			if anyElem(v, func(x any) bool { return equal(x, candidate) }) {
				return true
			}
		}
		return false
	case "$geoWithin":
		return geoWithin(v, arg)
	}
	return false
}

// anyElem applies pred to v, or to each element when v is an array
func anyElem(v any, pred func(any) bool) bool {
	if list, ok := v.(bson.A); ok {
		for _, x := range list {
			if pred(x) {
				return true
			}
		}
		return false
	}
	return pred(v)
}

func toList(v any) []any {
	switch l := v.(type) {
	case bson.A:
		return l
	case []any:
		return l
	case []bson.M:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out
	case []primitive.ObjectID:
		out := make([]any, len(l))
		for i, id := range l {
			out[i] = id
		}
		return out
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	}
	return nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case primitive.DateTime:
		return x.Time()
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	c, ok := compare(a, b)
	return ok && c == 0
}

func compare(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Hex(), y.Hex()), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// geoWithin evaluates {$centerSphere: [[lng, lat], radiusRadians]} against a GeoJSON point
func geoWithin(v, arg any) bool {
	point, ok := v.(bson.M)
	if !ok {
		return false
	}
	spec, ok := arg.(bson.M)
	if !ok {
		return false
	}
	sphere := toList(spec["$centerSphere"])
	if len(sphere) != 2 {
		return false
	}
	center := toList(sphere[0])
	radius, ok := normalize(sphere[1]).(float64)
	if !ok || len(center) != 2 {
		return false
	}
	coords := toList(point["coordinates"])
	if len(coords) != 2 {
		return false
	}

	lng1, _ := normalize(coords[0]).(float64)
	lat1, _ := normalize(coords[1]).(float64)
	lng2, _ := normalize(center[0]).(float64)
	lat2, _ := normalize(center[1]).(float64)
	return centralAngle(lat1, lng1, lat2, lng2) <= radius
}

func centralAngle(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Asin(math.Sqrt(h))
}

// Ratings computes the per-tour review figures of repository.ReviewRatings over a Memory review store
type Ratings struct {
	Reviews repository.Store[models.Review]
}

func (r Ratings) RatingStats(ctx context.Context, tourID primitive.ObjectID) (int, float64, error) {
	reviews, err := r.Reviews.Find(ctx, bson.M{"tour": tourID}, nil)
	if err != nil || len(reviews) == 0 {
		return 0, 0, err
	}
	var sum float64
	for _, rv := range reviews {
		sum += rv.Rating
	}
	return len(reviews), sum / float64(len(reviews)), nil
}
