// Package chain implements the append-only, per-key mutation history that the
// tier stores and replicates. A Chain value is immutable: Append returns a new
// value and never disturbs readers still holding the old one, so chains can be
// shared across goroutines without locking.
package chain

import (
	"bytes"
	"encoding/json"
	"iter"
)

// Element is one opaque mutation. The tier never interprets its bytes.
type Element []byte

// Chain is an ordered sequence of elements for one key.
// The zero value is the empty chain.
type Chain struct {
	elems []Element
}

// Empty returns the empty chain.
func Empty() Chain { return Chain{} }

// FromElements builds a chain holding copies of elems in order.
func FromElements(elems ...Element) Chain {
	c := Chain{elems: make([]Element, 0, len(elems))}
	for _, e := range elems {
		c.elems = append(c.elems, clone(e))
	}
	return c
}

// Append returns a chain equal to c with e added at the tail.
// The backing array is always copied: two appends to the same chain must not
// alias each other's tail.
func (c Chain) Append(e Element) Chain {
	next := make([]Element, len(c.elems), len(c.elems)+1)
	copy(next, c.elems)
	next = append(next, clone(e))
	return Chain{elems: next}
}

// Concat returns c followed by every element of other.
func (c Chain) Concat(other Chain) Chain {
	if other.IsEmpty() {
		return c
	}
	next := make([]Element, len(c.elems), len(c.elems)+len(other.elems))
	copy(next, c.elems)
	next = append(next, other.elems...)
	return Chain{elems: next}
}

// Elements yields every element in append order. The sequence can be ranged
// over any number of times.
func (c Chain) Elements() iter.Seq[Element] {
	elems := c.elems
	return func(yield func(Element) bool) {
		for _, e := range elems {
			if !yield(e) {
				return
			}
		}
	}
}

// Slice returns a copy of the elements.
func (c Chain) Slice() []Element {
	out := make([]Element, len(c.elems))
	for i, e := range c.elems {
		out[i] = clone(e)
	}
	return out
}

func (c Chain) Len() int { return len(c.elems) }

func (c Chain) IsEmpty() bool { return len(c.elems) == 0 }

// Equal reports deep structural equality of the element sequences.
func (c Chain) Equal(other Chain) bool {
	if len(c.elems) != len(other.elems) {
		return false
	}
	for i := range c.elems {
		if !bytes.Equal(c.elems[i], other.elems[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix's elements are the first elements of c.
func (c Chain) HasPrefix(prefix Chain) bool {
	if len(prefix.elems) > len(c.elems) {
		return false
	}
	for i := range prefix.elems {
		if !bytes.Equal(c.elems[i], prefix.elems[i]) {
			return false
		}
	}
	return true
}

// Suffix returns the elements of c after the first n.
func (c Chain) Suffix(n int) Chain {
	if n >= len(c.elems) {
		return Chain{}
	}
	if n < 0 {
		n = 0
	}
	return Chain{elems: c.elems[n:len(c.elems):len(c.elems)]}
}

// MarshalJSON encodes the chain as an array of base64 elements.
func (c Chain) MarshalJSON() ([]byte, error) {
	if c.elems == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.elems)
}

func (c *Chain) UnmarshalJSON(b []byte) error {
	var elems []Element
	if err := json.Unmarshal(b, &elems); err != nil {
		return err
	}
	*c = FromElements(elems...)
	return nil
}

func clone(e Element) Element {
	if e == nil {
		return Element{}
	}
	out := make(Element, len(e))
	copy(out, e)
	return out
}
