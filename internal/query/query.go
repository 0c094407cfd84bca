// Package query implements json-server style filtering, full-text q, sorting, slicing and pagination over
// in-memory records.
//
// Supported parameters:
//
//	field=value            equality on the textual form; repeated values are OR'ed; arrays match any element
//	a.b=value              dotted paths reach into nested objects
//	field_ne / _lt / _lte / _gt / _gte
//	                       comparisons, numeric when both sides are numbers
//	field_like=text        case and accent insensitive substring
//	q=text                 case and accent insensitive substring over every string field
//	_sort=a,-b & _order=asc,desc
//	_page & _per_page (alias _limit)
//	_start, _end, _limit   slicing when _page is absent
package query

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// MsgInvalidParams is the message of errors returned by Parse.
const MsgInvalidParams = "Parámetros de consulta inválidos."

type operator string

const (
	opEq   operator = ""
	opNe   operator = "_ne"
	opLt   operator = "_lt"
	opLte  operator = "_lte"
	opGt   operator = "_gt"
	opGte  operator = "_gte"
	opLike operator = "_like"
)

// Longest suffixes first so "_lte" is not read as "_lt".
var operators = []operator{opLike, opLte, opGte, opNe, opLt, opGt}

// reserved parameters never become filters.
var reserved = map[string]bool{
	"q": true, "_sort": true, "_order": true, "_page": true, "_per_page": true, "_limit": true,
	"_start": true, "_end": true, "_embed": true, "_expand": true, "_dependent": true,
}

type filter struct {
	path   []string
	op     operator
	values []string
}

type sortKey struct {
	path []string
	desc bool
}

// Query is a parsed set of query parameters.
type Query struct {
	filters []filter
	text    string
	sort    []sortKey

	page    int // 0 when not paginating
	perPage int

	start int
	end   int // -1 when unset
	limit int // -1 when unset
}

// Parse reads query parameters. defaultPerPage applies when _page is given without a page size. Malformed
// numeric parameters are a validation error listing the offending keys.
func Parse(values url.Values, defaultPerPage int) (*Query, error) {
	q := &Query{end: -1, limit: -1}
	bad := make(map[string]string)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if reserved[key] {
			continue
		}
		field, op := splitOperator(key)
		if field == "" {
			continue
		}
		q.filters = append(q.filters, filter{path: strings.Split(field, "."), op: op, values: values[key]})
	}

	q.text = Fold(strings.TrimSpace(values.Get("q")))
	q.sort = parseSort(values.Get("_sort"), values.Get("_order"))

	intParam := func(key string, minimum int) int {
		raw := values.Get(key)
		if raw == "" {
			return -1
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < minimum {
			bad[key] = "must be an integer >= " + strconv.Itoa(minimum)
			return -1
		}
		return n
	}

	page := intParam("_page", 1)
	perPage := intParam("_per_page", 1)
	limit := intParam("_limit", 0)
	start := intParam("_start", 0)
	end := intParam("_end", 0)

	if len(bad) > 0 {
		return nil, domainerrors.ValidationWithDetails(MsgInvalidParams, bad)
	}

	if page > 0 {
		q.page = page
		switch {
		case perPage > 0:
			q.perPage = perPage
		case limit > 0:
			q.perPage = limit
		default:
			q.perPage = max(defaultPerPage, 1)
		}
		return q, nil
	}

	q.start = max(start, 0)
	q.end = end
	q.limit = limit
	return q, nil
}

func splitOperator(key string) (string, operator) {
	for _, op := range operators {
		if field, ok := strings.CutSuffix(key, string(op)); ok && field != "" {
			return field, op
		}
	}
	return key, opEq
}

func parseSort(fields, orders string) []sortKey {
	if fields == "" {
		return nil
	}
	var orderList []string
	if orders != "" {
		orderList = strings.Split(orders, ",")
	}

	var keys []sortKey
	for i, f := range strings.Split(fields, ",") {
		f = strings.TrimSpace(f)
		desc := false
		if rest, ok := strings.CutPrefix(f, "-"); ok {
			f, desc = rest, true
		}
		if f == "" {
			continue
		}
		if i < len(orderList) && strings.EqualFold(strings.TrimSpace(orderList[i]), "desc") {
			desc = !desc
		}
		keys = append(keys, sortKey{path: strings.Split(f, "."), desc: desc})
	}
	return keys
}

// Paginated reports whether _page was given.
func (q *Query) Paginated() bool {
	return q.page > 0
}

// Page is a json-server v1 pagination envelope.
type Page struct {
	First int            `json:"first"`
	Prev  *int           `json:"prev"`
	Next  *int           `json:"next"`
	Last  int            `json:"last"`
	Pages int            `json:"pages"`
	Items int            `json:"items"`
	Data  []store.Record `json:"data"`
}

// Result is the outcome of Apply.
type Result struct {
	// Items is the selected window (the page data when paginating).
	Items []store.Record
	// Total is the number of records matching the filters, before slicing.
	Total int
	// Page is set when the query was paginated.
	Page *Page
}

// Apply filters, sorts and slices records. records is not modified.
func (q *Query) Apply(records []store.Record) Result {
	matched := q.Filter(records)
	q.Sort(matched)

	total := len(matched)
	if q.page > 0 {
		page := paginate(matched, q.page, q.perPage)
		return Result{Items: page.Data, Total: total, Page: page}
	}
	return Result{Items: q.slice(matched), Total: total}
}

// Filter returns the records matching every filter and q, in input order.
func (q *Query) Filter(records []store.Record) []store.Record {
	out := make([]store.Record, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether one record satisfies the filters and q.
func (q *Query) Matches(r store.Record) bool {
	for _, f := range q.filters {
		if !f.matches(r) {
			return false
		}
	}
	if q.text != "" && !containsText(map[string]any(r), q.text) {
		return false
	}
	return true
}

// Sort orders records in place by the _sort keys. Records missing a key sort after those that have it.
func (q *Query) Sort(records []store.Record) {
	if len(q.sort) == 0 {
		return
	}
	slices.SortStableFunc(records, func(a, b store.Record) int {
		for _, k := range q.sort {
			av, aok := lookup(a, k.path)
			bv, bok := lookup(b, k.path)
			switch {
			case !aok && !bok:
				continue
			case !aok:
				return 1
			case !bok:
				return -1
			}
			c := compare(av, bv)
			if c == 0 {
				continue
			}
			if k.desc {
				return -c
			}
			return c
		}
		return 0
	})
}

func (q *Query) slice(records []store.Record) []store.Record {
	start := min(q.start, len(records))
	end := len(records)
	switch {
	case q.end >= 0:
		end = q.end
	case q.limit >= 0:
		end = start + q.limit
	}
	end = min(max(end, start), len(records))
	return records[start:end]
}

func paginate(records []store.Record, page, perPage int) *Page {
	total := len(records)
	pages := max(1, int(math.Ceil(float64(total)/float64(perPage))))

	p := &Page{First: 1, Last: pages, Pages: pages, Items: total}
	if page > 1 {
		prev := page - 1
		p.Prev = &prev
	}
	if page < pages {
		next := page + 1
		p.Next = &next
	}

	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	p.Data = records[start:end]
	if p.Data == nil {
		p.Data = []store.Record{}
	}
	return p
}

func (f filter) matches(r store.Record) bool {
	v, ok := lookup(r, f.path)

	switch f.op {
	case opEq:
		if !ok {
			return false
		}
		return slices.ContainsFunc(f.values, func(want string) bool { return equals(v, want) })
	case opNe:
		if !ok {
			return true
		}
		return !slices.ContainsFunc(f.values, func(want string) bool { return equals(v, want) })
	case opLike:
		if !ok {
			return false
		}
		return slices.ContainsFunc(f.values, func(want string) bool { return like(v, Fold(want)) })
	default:
		if !ok {
			return false
		}
		for _, want := range f.values {
			c, comparable := compareTo(v, want)
			if !comparable {
				return false
			}
			switch f.op {
			case opLt:
				if c >= 0 {
					return false
				}
			case opLte:
				if c > 0 {
					return false
				}
			case opGt:
				if c <= 0 {
					return false
				}
			case opGte:
				if c < 0 {
					return false
				}
			}
		}
		return true
	}
}

// lookup follows a dotted path through nested objects.
func lookup(r store.Record, path []string) (any, bool) {
	var cur any = map[string]any(r)
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// text returns the query-string form of a scalar.
func text(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "null", true
	}
	return "", false
}

func equals(v any, want string) bool {
	if arr, ok := v.([]any); ok {
		return slices.ContainsFunc(arr, func(e any) bool { return equals(e, want) })
	}
	s, ok := text(v)
	return ok && s == want
}

func like(v any, folded string) bool {
	if arr, ok := v.([]any); ok {
		return slices.ContainsFunc(arr, func(e any) bool { return like(e, folded) })
	}
	s, ok := text(v)
	return ok && strings.Contains(Fold(s), folded)
}

func containsText(v any, folded string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(Fold(t), folded)
	case map[string]any:
		for _, e := range t {
			if containsText(e, folded) {
				return true
			}
		}
	case []any:
		for _, e := range t {
			if containsText(e, folded) {
				return true
			}
		}
	}
	return false
}

// compareTo compares a record value with a query operand: numerically when both are numbers, otherwise as
// strings. Arrays and objects are not comparable.
func compareTo(v any, operand string) (int, bool) {
	s, ok := text(v)
	if !ok {
		return 0, false
	}
	a, aerr := strconv.ParseFloat(s, 64)
	b, berr := strconv.ParseFloat(operand, 64)
	if aerr == nil && berr == nil {
		return cmpFloat(a, b), true
	}
	return strings.Compare(s, operand), true
}

// compare orders two record values for sorting: numbers numerically, strings folded, mixed kinds by their
// textual form.
func compare(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return cmpFloat(af, bf)
	}
	as, _ := text(a)
	bs, _ := text(b)
	if x, err := strconv.ParseFloat(as, 64); err == nil {
		if y, err := strconv.ParseFloat(bs, 64); err == nil {
			return cmpFloat(x, y)
		}
	}
	return strings.Compare(Fold(as), Fold(bs))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
