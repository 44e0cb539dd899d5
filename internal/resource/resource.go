// Package resource builds typed CRUD accessors over a backend REST collection.
// Reads are cached per console session; every confirmed mutation drops the
// collection's cache group for that session.
package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"admin-console/internal/api_client"
	"admin-console/internal/cache"
	"admin-console/internal/models"
)

// Scope is the console session a call runs on behalf of.
type Scope interface {
	api_client.TokenSource
	SessionID() string
}

// Doer sends one backend request; *api_client.Client implements it.
type Doer interface {
	Do(ctx context.Context, tokens api_client.TokenSource, method, path string, params, body any) ([]byte, error)
}

type Resource[T any] struct {
	client Doer
	path   string
	key    string
	cache  cache.Cache
	logger *zap.Logger
}

// New returns the accessor for the collection at path (relative to the
// backend base, with a trailing slash). key names its cache group.
func New[T any](client Doer, path, key string, c cache.Cache, logger *zap.Logger) *Resource[T] {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return &Resource[T]{
		client: client,
		path:   path,
		key:    key,
		cache:  c,
		logger: logger.With(zap.String("resource", key)),
	}
}

func (r *Resource[T]) Path() string { return r.path }
func (r *Resource[T]) Key() string  { return r.key }

func (r *Resource[T]) itemPath(id string) string {
	return r.path + url.PathEscape(id) + "/"
}

func cacheKey(path string, params any) (string, error) {
	values, err := api_client.EncodeParams(params)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return path, nil
	}
	return path + "?" + values.Encode(), nil
}

// read performs a cached GET of path and decodes it into out.
func (r *Resource[T]) read(ctx context.Context, scope Scope, path string, params, out any) error {
	key, err := cacheKey(path, params)
	if err != nil {
		return err
	}

	var version int64
	cacheable := r.cache != nil
	if cacheable {
		data, ok, err := r.cache.Get(ctx, scope.SessionID(), r.key, key)
		if err != nil {
			r.logger.Warn("Query cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			if err := json.Unmarshal(data, out); err == nil {
				return nil
			}
			r.logger.Warn("Dropping undecodable cache entry", zap.String("key", key))
		}
		// Taken before the fetch, so a mutation confirmed meanwhile keeps
		// this response out of the cache.
		if version, err = r.cache.Version(ctx, scope.SessionID(), r.key); err != nil {
			r.logger.Warn("Query cache version read failed", zap.String("key", key), zap.Error(err))
			cacheable = false
		}
	}

	data, err := r.client.Do(ctx, scope, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	if cacheable {
		if err := r.cache.Set(ctx, scope.SessionID(), r.key, key, version, data); err != nil {
			r.logger.Warn("Query cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// write sends a mutation and invalidates the cache group once the backend
// confirms it. A failed mutation leaves the cache alone.
func (r *Resource[T]) write(ctx context.Context, scope Scope, method, path string, body, out any) error {
	data, err := r.client.Do(ctx, scope, method, path, nil, body)
	if err != nil {
		return err
	}
	if err := r.Invalidate(ctx, scope); err != nil {
		r.logger.Warn("Query cache invalidation failed", zap.Error(err))
	}
	if out == nil || len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// List returns one list response. params is anything api_client.EncodeParams
// accepts.
func (r *Resource[T]) List(ctx context.Context, scope Scope, params any) (*models.ListResult[T], error) {
	var result models.ListResult[T]
	if err := r.read(ctx, scope, r.path, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *Resource[T]) Get(ctx context.Context, scope Scope, id string) (*T, error) {
	item := new(T)
	if err := r.read(ctx, scope, r.itemPath(id), nil, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Fetch is Get without the cache.
func (r *Resource[T]) Fetch(ctx context.Context, scope Scope, id string) (*T, error) {
	data, err := r.client.Do(ctx, scope, http.MethodGet, r.itemPath(id), nil, nil)
	if err != nil {
		return nil, err
	}
	item := new(T)
	if err := json.Unmarshal(data, item); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", r.itemPath(id), err)
	}
	return item, nil
}

// Read is a cached GET of a sub-path of the collection, such as "stats/".
func (r *Resource[T]) Read(ctx context.Context, scope Scope, subpath string, params, out any) error {
	return r.read(ctx, scope, r.path+subpath, params, out)
}

func (r *Resource[T]) Create(ctx context.Context, scope Scope, body any) (*T, error) {
	item := new(T)
	if err := r.write(ctx, scope, http.MethodPost, r.path, body, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Update replaces the item with PUT.
func (r *Resource[T]) Update(ctx context.Context, scope Scope, id string, body any) (*T, error) {
	item := new(T)
	if err := r.write(ctx, scope, http.MethodPut, r.itemPath(id), body, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Resource[T]) Patch(ctx context.Context, scope Scope, id string, body any) (*T, error) {
	item := new(T)
	if err := r.write(ctx, scope, http.MethodPatch, r.itemPath(id), body, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Resource[T]) Delete(ctx context.Context, scope Scope, id string) error {
	return r.write(ctx, scope, http.MethodDelete, r.itemPath(id), nil, nil)
}

// Action calls a collection-specific endpoint below the collection path, for
// example "5/toggle_active/". A successful action invalidates the group.
func (r *Resource[T]) Action(ctx context.Context, scope Scope, method, subpath string, body, out any) error {
	return r.write(ctx, scope, method, r.path+subpath, body, out)
}

// Write mutates a path outside the collection and invalidates this group.
func (r *Resource[T]) Write(ctx context.Context, scope Scope, method, path string, body, out any) error {
	return r.write(ctx, scope, method, path, body, out)
}

func (r *Resource[T]) Invalidate(ctx context.Context, scope Scope) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, scope.SessionID(), r.key)
}

// FetchPage requests one page with the given filters. A bare array answer is
// presented as a single last page.
func (r *Resource[T]) FetchPage(ctx context.Context, scope Scope, params url.Values, page int) (*models.Page[T], error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("page", strconv.Itoa(page))

	data, err := r.client.Do(ctx, scope, http.MethodGet, r.path, q, nil)
	if err != nil {
		return nil, err
	}
	var result models.ListResult[T]
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode %s page %d: %w", r.path, page, err)
	}
	return result.AsPage(), nil
}

// All sweeps every page. See Sweep for the error policy.
func (r *Resource[T]) All(ctx context.Context, scope Scope, params url.Values) []T {
	return Sweep(ctx, func(ctx context.Context, page int) (*models.Page[T], error) {
		return r.FetchPage(ctx, scope, params, page)
	}, r.logger)
}
