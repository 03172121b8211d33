// Package cart holds the in-memory per-session carts built up while a
// customer scans items. Carts are ephemeral: only checkout turns one into a
// persisted transaction.
package cart

import (
	"github.com/go-faster/errors"
)

// ErrLineNotFound is returned when changing a barcode that is not in the cart.
var ErrLineNotFound = errors.New("item not in cart")

// ErrInvalidQuantity is returned when a quantity below 1 is requested.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Line is one scanned product with its accumulated quantity.
type Line struct {
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}

// Cart accumulates scanned items for a single session. Scanning a barcode
// already in the cart increments its quantity; a barcode never appears on two
// lines. Lines keep first-scan order.
//
// Cart is not safe for concurrent use; Store serializes access per session.
type Cart struct {
	lines []Line
	index map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{index: make(map[string]int)}
}

// Add unions the barcode into the cart, incrementing the existing line by qty
// when already present.
func (c *Cart) Add(barcode string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if i, ok := c.index[barcode]; ok {
		c.lines[i].Quantity += qty
		return nil
	}
	c.index[barcode] = len(c.lines)
	c.lines = append(c.lines, Line{Barcode: barcode, Quantity: qty})
	return nil
}

// SetQuantity replaces the quantity of an existing line.
func (c *Cart) SetQuantity(barcode string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	i, ok := c.index[barcode]
	if !ok {
		return ErrLineNotFound
	}
	c.lines[i].Quantity = qty
	return nil
}

// Remove deletes the line for the barcode.
func (c *Cart) Remove(barcode string) error {
	i, ok := c.index[barcode]
	if !ok {
		return ErrLineNotFound
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	delete(c.index, barcode)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].Barcode] = j
	}
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[string]int)
}

// Lines returns a copy of the cart lines in first-scan order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}
