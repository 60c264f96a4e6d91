// Package query turns request query parameters into a filter, sort, projection
// and page window for a document store.
package query

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/arzan03/natours/internal/apperr"
	"go.mongodb.org/mongo-driver/bson"
)

type Kind int

const (
	String Kind = iota
	Number
	Bool
	Date
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

var reserved = []string{"page", "sort", "limit", "fields"}

var operators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

// Spec whitelists the fields of one collection
type Spec struct {
	// Fields may be filtered and sorted on
	Fields map[string]Kind
	// Selectable may be requested through ?fields=
	Selectable []string
	// Multi fields turn repeated equality parameters into $in
	Multi []string
}

type Query struct {
	Filter     bson.M
	Sort       bson.D
	Fields     []string
	Exclude    []string
	Projection bson.M
	Page       int64
	Limit      int64
	Skip       int64
}

// Build applies filter, sort, field selection and pagination in that order
func Build(values url.Values, spec Spec) (*Query, error) {
	q := &Query{}
	if err := q.filter(values, spec); err != nil {
		return nil, err
	}
	q.sort(last(values, "sort"), spec)
	q.limitFields(last(values, "fields"), spec)
	q.paginate(last(values, "page"), last(values, "limit"))
	return q, nil
}

// last returns the final value of a repeated parameter
func last(values url.Values, key string) string {
	vals := values[key]
	if len(vals) == 0 {
		return ""
	}
	return vals[len(vals)-1]
}

func (q *Query) filter(values url.Values, spec Spec) error {
	q.Filter = bson.M{}
	// sorted keys put field= ahead of field[op]=, so operators always override equality
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		vals := values[key]
		if slices.Contains(reserved, key) || len(vals) == 0 {
			continue
		}

		field, op := key, ""
		if i := strings.IndexByte(key, '['); i > 0 && strings.HasSuffix(key, "]") {
			field, op = key[:i], key[i+1:len(key)-1]
		}
		kind, ok := spec.Fields[field]
		if !ok {
			continue
		}

		if op == "" {
			if len(vals) > 1 && slices.Contains(spec.Multi, field) {
				in := make(bson.A, 0, len(vals))
				for _, raw := range vals {
					v, err := convert(field, raw, kind)
					if err != nil {
						return err
					}
					in = append(in, v)
				}
				q.merge(field, bson.M{"$in": in})
				continue
			}
			v, err := convert(field, vals[len(vals)-1], kind)
			if err != nil {
				return err
			}
			q.merge(field, v)
			continue
		}

		mongoOp, ok := operators[op]
		if !ok {
			continue
		}
		v, err := convert(field, vals[len(vals)-1], kind)
		if err != nil {
			return err
		}
		q.merge(field, bson.M{mongoOp: v})
	}
	return nil
}

// merge combines several operators on one field, e.g. price[gte] and price[lt].
// An operator set replaces a plain equality on the same field.
func (q *Query) merge(field string, v any) {
	ops, isOps := v.(bson.M)
	existing, hasOps := q.Filter[field].(bson.M)
	if isOps && hasOps {
		for k, val := range ops {
			existing[k] = val
		}
		return
	}
	q.Filter[field] = v
}

func (q *Query) sort(raw string, spec Spec) {
	q.Sort = bson.D{}
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir, part = -1, part[1:]
		}
		if part == "id" {
			part = "_id"
		}
		if part == "" || seen[part] {
			continue
		}
		if _, ok := spec.Fields[part]; !ok && part != "_id" {
			continue
		}
		seen[part] = true
		q.Sort = append(q.Sort, bson.E{Key: part, Value: dir})
	}
	// _id keeps creation order and makes paging stable between equal keys
	if !seen["_id"] {
		q.Sort = append(q.Sort, bson.E{Key: "_id", Value: 1})
	}
}

// limitFields reads "name,price" as an inclusion and "-name" as an exclusion.
// Mongo cannot mix the two, so exclusions are dropped when any field is included.
func (q *Query) limitFields(raw string, spec Spec) {
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		target := &q.Fields
		if strings.HasPrefix(f, "-") {
			f, target = f[1:], &q.Exclude
		}
		if f != "" && slices.Contains(spec.Selectable, f) && !slices.Contains(*target, f) {
			*target = append(*target, f)
		}
	}
	if len(q.Fields) == 0 {
		q.Projection = bson.M{"__v": 0}
		for _, f := range q.Exclude {
			q.Projection[f] = 0
		}
		return
	}
	q.Exclude = nil
	q.Projection = bson.M{}
	for _, f := range q.Fields {
		q.Projection[f] = 1
	}
}

func (q *Query) paginate(rawPage, rawLimit string) {
	q.Page = positive(rawPage, DefaultPage)
	q.Limit = positive(rawLimit, DefaultLimit)
	q.Skip = (q.Page - 1) * q.Limit
}

func positive(raw string, def int64) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func convert(field, raw string, kind Kind) (any, error) {
	switch kind {
	case Number:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalid(field, raw)
		}
		return f, nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalid(field, raw)
		}
		return b, nil
	case Date:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, invalid(field, raw)
	default:
		return raw, nil
	}
}

func invalid(field, raw string) error {
	return apperr.BadRequest(fmt.Sprintf("Invalid %s: %s", field, raw))
}

// Project trims an encoded document down to the selected fields; id is always kept
func Project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return doc
	}
	out := make(map[string]any, len(fields)+1)
	if id, ok := doc["id"]; ok {
		out["id"] = id
	}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Omit removes the excluded fields from an encoded document; id is always kept
func Omit(doc map[string]any, fields []string) map[string]any {
	for _, f := range fields {
		if f != "id" {
			delete(doc, f)
		}
	}
	return doc
}

// TopCheap is the parameter set behind the top-5-cheap alias
func TopCheap() map[string]string {
	return map[string]string{
		"limit":  "5",
		"sort":   "-ratingsAverage,price",
		"fields": "name,price,ratingsAverage,summary,difficulty",
	}
}
