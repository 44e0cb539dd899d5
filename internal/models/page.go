package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is the backend's pagination envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func (p *Page[T]) HasNext() bool     { return p.Next != nil }
func (p *Page[T]) HasPrevious() bool { return p.Previous != nil }

type ListKind int

const (
	KindItems ListKind = iota // bare JSON array
	KindPage                  // pagination envelope
)

// ListResult is a list response whose shape (array or envelope) is resolved
// once while decoding.
type ListResult[T any] struct {
	Kind  ListKind
	Page  Page[T]
	items []T
}

func (r *ListResult[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = ListResult[T]{Kind: KindItems}
		return nil
	}
	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("decode list items: %w", err)
		}
		*r = ListResult[T]{Kind: KindItems, items: items}
	case '{':
		var page Page[T]
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return fmt.Errorf("decode list page: %w", err)
		}
		*r = ListResult[T]{Kind: KindPage, Page: page}
	default:
		return fmt.Errorf("unexpected list payload starting with %q", trimmed[0])
	}
	return nil
}

// Items returns the rows regardless of the response shape. An envelope without
// results yields an empty slice.
func (r *ListResult[T]) Items() []T {
	var items []T
	if r.Kind == KindPage {
		items = r.Page.Results
	} else {
		items = r.items
	}
	if items == nil {
		return []T{}
	}
	return items
}

// Total is the envelope count, or the number of items for a bare array.
func (r *ListResult[T]) Total() int {
	if r.Kind == KindPage {
		return r.Page.Count
	}
	return len(r.items)
}

func (r *ListResult[T]) HasNext() bool     { return r.Kind == KindPage && r.Page.HasNext() }
func (r *ListResult[T]) HasPrevious() bool { return r.Kind == KindPage && r.Page.HasPrevious() }

// AsPage presents the result as an envelope with no further pages when the
// backend returned a bare array.
func (r *ListResult[T]) AsPage() *Page[T] {
	if r.Kind == KindPage {
		return &r.Page
	}
	return &Page[T]{Count: len(r.items), Results: r.Items()}
}
