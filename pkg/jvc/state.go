// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// UnknownName is the member every category decodes unmapped codes to
const UnknownName = "unknown"

// State is one decoded member of a category
type State struct {
	Category string
	Name     string
	Code     string
}

// Unknown reports whether the device returned a code the table does not know
func (s State) Unknown() bool {
	return s.Name == UnknownName
}

// String returns the member name
func (s State) String() string {
	return s.Name
}

// Member maps a name to a device code
type Member struct {
	Name string
	Code string
}

// Category is a fixed set of device states reported by one inquiry verb
type Category struct {
	name     string
	verb     string
	readOnly bool
	members  []Member
	byCode   map[string]Member
	byName   map[string]Member
}

// NewCategory builds a category table. Codes and names must be unique.
func NewCategory(name, verb string, readOnly bool, members ...Member) *Category {
	c := &Category{
		name:     name,
		verb:     verb,
		readOnly: readOnly,
		members:  members,
		byCode:   make(map[string]Member, len(members)),
		byName:   make(map[string]Member, len(members)),
	}
	for _, m := range members {
		if _, dup := c.byCode[m.Code]; dup {
			panic(fmt.Sprintf("jvc: category %s: duplicate code %q", name, m.Code))
		}
		if _, dup := c.byName[m.Name]; dup || m.Name == UnknownName {
			panic(fmt.Sprintf("jvc: category %s: duplicate or reserved name %q", name, m.Name))
		}
		c.byCode[m.Code] = m
		c.byName[m.Name] = m
	}
	return c
}

// Name returns the category name, e.g. "picture_mode"
func (c *Category) Name() string { return c.name }

// Verb returns the inquiry verb, e.g. "PMPM"
func (c *Category) Verb() string { return c.verb }

// ReadOnly reports whether the category can only be queried
func (c *Category) ReadOnly() bool { return c.readOnly }

// Members returns the table in declaration order
func (c *Category) Members() []Member {
	return append([]Member(nil), c.members...)
}

// Names returns the sorted member names
func (c *Category) Names() []string {
	names := make([]string, 0, len(c.members))
	for _, m := range c.members {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// Decode maps a raw reply value to a member. Codes missing from the table
// decode to the unknown member; a successful exchange never fails here.
func (c *Category) Decode(raw []byte) State {
	code := string(raw)
	if m, ok := c.byCode[code]; ok {
		return State{Category: c.name, Name: m.Name, Code: code}
	}
	return State{Category: c.name, Name: UnknownName, Code: code}
}

// Code returns the device code for a member name
func (c *Category) Code(name string) (string, bool) {
	m, ok := c.byName[name]
	return m.Code, ok
}

// Inquiry returns the command that queries the category
func (c *Category) Inquiry() Command {
	return Inquiry(c.verb)
}

// BoolCategory is a two-valued category. The protocol guarantees its codes, so
// an unmatched value is a framing problem rather than an unknown state.
type BoolCategory struct {
	name       string
	verb       string
	trueCodes  map[string]bool
	falseCodes map[string]bool
}

// NewBoolCategory builds a boolean table from the codes meaning true and false
func NewBoolCategory(name, verb string, trueCodes, falseCodes []string) *BoolCategory {
	b := &BoolCategory{
		name:       name,
		verb:       verb,
		trueCodes:  make(map[string]bool, len(trueCodes)),
		falseCodes: make(map[string]bool, len(falseCodes)),
	}
	for _, code := range trueCodes {
		b.trueCodes[code] = true
	}
	for _, code := range falseCodes {
		if b.trueCodes[code] {
			panic(fmt.Sprintf("jvc: bool category %s: code %q is both true and false", name, code))
		}
		b.falseCodes[code] = true
	}
	return b
}

// Name returns the category name
func (b *BoolCategory) Name() string { return b.name }

// Verb returns the inquiry verb
func (b *BoolCategory) Verb() string { return b.verb }

// Inquiry returns the command that queries the category
func (b *BoolCategory) Inquiry() Command {
	return Inquiry(b.verb)
}

// Decode maps a raw value to true or false
func (b *BoolCategory) Decode(raw []byte) (bool, error) {
	code := string(raw)
	switch {
	case b.trueCodes[code]:
		return true, nil
	case b.falseCodes[code]:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s value %q is neither true nor false", ErrMalformedFrame, b.name, code)
	}
}

// DecodeHours decodes a four hex digit counter such as the lamp time
func DecodeHours(raw []byte) (int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: empty counter value", ErrMalformedFrame)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: counter value %q: %v", ErrMalformedFrame, s, err)
	}
	return int(v), nil
}

// DecodeVersion decodes a software version string. The device pads the value
// with spaces or NUL bytes.
func DecodeVersion(raw []byte) string {
	return strings.Trim(string(raw), " \t\x00")
}
