package models

// Item is one record flowing over a connection. Values are restricted by
// convention to JSON kinds (string, number, bool, nil, nested map/slice);
// node-specific shape beyond that is validated by the node registry.
type Item map[string]any

// Envelope is the uniform output of a node execution: named output ports,
// each holding an ordered sequence of items. Downstream routing reads the
// port named by each outgoing connection.
type Envelope map[string][]Item

// SingleItem builds an envelope with one item on the given port.
func SingleItem(port string, item Item) Envelope {
	return Envelope{port: []Item{item}}
}

// Port returns the items on the named port, or nil when the node produced
// nothing there.
func (e Envelope) Port(name string) []Item {
	if e == nil {
		return nil
	}

	return e[name]
}

// Merge appends the items of other onto the matching ports of e.
func (e Envelope) Merge(other Envelope) Envelope {
	if e == nil {
		e = make(Envelope, len(other))
	}

	for port, items := range other {
		e[port] = append(e[port], items...)
	}

	return e
}

// Clone returns a deep copy of the item, descending into nested maps and
// slices so the copy shares no mutable state with the original.
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}

	out := make(Item, len(i))
	for k, v := range i {
		out[k] = deepCopyValue(v)
	}

	return out
}

// Clone returns a deep copy of the envelope down to individual item values.
func (e Envelope) Clone() Envelope {
	if e == nil {
		return nil
	}

	out := make(Envelope, len(e))

	for port, items := range e {
		copied := make([]Item, len(items))
		for i, item := range items {
			copied[i] = item.Clone()
		}

		out[port] = copied
	}

	return out
}

// deepCopyValue copies the JSON value kinds items are restricted to.
// Scalars are returned as-is.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case Item:
		return val.Clone()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = deepCopyValue(nested)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = deepCopyValue(nested)
		}

		return out
	case []Item:
		out := make([]Item, len(val))
		for i, item := range val {
			out[i] = item.Clone()
		}

		return out
	default:
		return v
	}
}
