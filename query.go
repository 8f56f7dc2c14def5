package dsstub

import (
	"fmt"
	"strings"
)

type Operator int

const (
	OpLessThan Operator = iota + 1
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpEqual
	OpIn
)

var operatorSymbols = map[Operator]string{
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpEqual:              "=",
	OpIn:                 "IN",
}

func (op Operator) String() string {
	if s, ok := operatorSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

func (op Operator) inequality() bool {
	return op >= OpLessThan && op <= OpGreaterThanOrEqual
}

// matches reports whether a value comparing as c against the filter value
// satisfies op.
func (op Operator) matches(c int) bool {
	switch op {
	case OpLessThan:
		return c < 0
	case OpLessThanOrEqual:
		return c <= 0
	case OpGreaterThan:
		return c > 0
	case OpGreaterThanOrEqual:
		return c >= 0
	case OpEqual:
		return c == 0
	default:
		panic(fmt.Errorf("unsupported operator %v", op))
	}
}

type Direction int

const (
	Ascending Direction = iota + 1
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ASC"
	case Descending:
		return "DESC"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

type Filter struct {
	Property string   `msgpack:"p"`
	Op       Operator `msgpack:"o"`
	Value    Value    `msgpack:"v"`
}

type Order struct {
	Property  string    `msgpack:"p"`
	Direction Direction `msgpack:"d"`
}

// Query selects entities of one kind (or of every kind, when Kind is empty)
// within an app and namespace. Filters are conjunctive.
type Query struct {
	App       string   `msgpack:"a"`
	Namespace string   `msgpack:"ns,omitempty"`
	Kind      string   `msgpack:"k,omitempty"`
	Ancestor  *Key     `msgpack:"anc,omitempty"`
	Filters   []Filter `msgpack:"f,omitempty"`
	Orders    []Order  `msgpack:"o,omitempty"`
	Offset    int32    `msgpack:"off,omitempty"`
	Limit     int32    `msgpack:"lim,omitempty"`
	HasLimit  bool     `msgpack:"hl,omitempty"`
	Hint      string   `msgpack:"h,omitempty"`
}

func NewQuery(kind string) *Query {
	return &Query{Kind: kind}
}

func (q *Query) Filter(prop string, op Operator, v Value) *Query {
	q.Filters = append(q.Filters, Filter{prop, op, v})
	return q
}

func (q *Query) Order(prop string, dir Direction) *Query {
	q.Orders = append(q.Orders, Order{prop, dir})
	return q
}

func (q *Query) WithAncestor(k *Key) *Query {
	q.Ancestor = k
	return q
}

func (q *Query) WithOffset(n int32) *Query {
	q.Offset = n
	return q
}

func (q *Query) WithLimit(n int32) *Query {
	q.Limit = n
	q.HasLimit = true
	return q
}

// normalizeQuery returns a copy with the app resolved. The caller's query is
// never modified.
func (e *Engine) normalizeQuery(q *Query) *Query {
	c := *q
	c.App = e.resolveApp(q.App)
	if c.Ancestor != nil {
		c.Ancestor = e.resolveKey(c.Ancestor)
	}
	c.Filters = append([]Filter(nil), q.Filters...)
	for i := range c.Filters {
		if v := &c.Filters[i].Value; v.Type == TypeReference && v.Ref != nil {
			v.Ref = e.resolveKey(v.Ref)
		}
	}
	c.Orders = append([]Order(nil), q.Orders...)
	return &c
}

// validate checks the parts of the query the engine cannot execute.
func (q *Query) validate() error {
	if q.Offset < 0 {
		return badRequestf("negative query offset %d", q.Offset)
	}
	if q.HasLimit && q.Limit < 0 {
		return badRequestf("negative query limit %d", q.Limit)
	}
	if q.Ancestor != nil {
		if err := q.Ancestor.validate(false); err != nil {
			return err
		}
		if q.Ancestor.App != q.App {
			return badRequestf("ancestor %v belongs to app %q, query is for %q", q.Ancestor, q.Ancestor.App, q.App)
		}
	}
	for _, f := range q.Filters {
		if f.Op == OpIn {
			return badRequestf("IN filter on %s is not supported", f.Property)
		}
		if _, ok := operatorSymbols[f.Op]; !ok {
			return badRequestf("unknown filter operator %v on %s", f.Op, f.Property)
		}
		if f.Property == "" {
			return badRequestf("filter without a property name")
		}
	}
	for _, o := range q.Orders {
		if o.Direction != Ascending && o.Direction != Descending {
			return badRequestf("unknown sort direction %v on %s", o.Direction, o.Property)
		}
		if o.Property == "" {
			return badRequestf("sort order without a property name")
		}
	}
	return nil
}

// canonical returns the history identity of the query: the query with its
// hint cleared.
func (q *Query) canonical() *Query {
	c := *q
	c.Hint = ""
	return &c
}

func (q *Query) String() string {
	var buf strings.Builder
	buf.WriteString("SELECT * FROM ")
	if q.Kind == "" {
		buf.WriteString("*")
	} else {
		buf.WriteString(q.Kind)
	}
	var conds []string
	if q.Ancestor != nil {
		conds = append(conds, "ANCESTOR IS "+q.Ancestor.String())
	}
	for _, f := range q.Filters {
		conds = append(conds, f.Property+" "+f.Op.String()+" "+f.Value.String())
	}
	if len(conds) > 0 {
		buf.WriteString(" WHERE ")
		buf.WriteString(strings.Join(conds, " AND "))
	}
	if len(q.Orders) > 0 {
		buf.WriteString(" ORDER BY ")
		for i, o := range q.Orders {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(o.Property)
			buf.WriteByte(' ')
			buf.WriteString(o.Direction.String())
		}
	}
	if q.HasLimit {
		fmt.Fprintf(&buf, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&buf, " OFFSET %d", q.Offset)
	}
	return buf.String()
}
