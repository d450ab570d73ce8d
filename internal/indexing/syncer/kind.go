package syncer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/vietddude/ledgersync/internal/core/cache"
	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// ErrNullList is returned when a list field of a response is null.
var ErrNullList = errors.New("null list in response")

// Kind is one record kind of the registry. The variants differ in how they
// diff against the cache: scalar, whole collection, or per key.
type Kind interface {
	Name() string

	// Document returns the query document. Scope is the tournament id for
	// per-tournament kinds and ignored otherwise.
	Document(scope string) string

	sync(ctx context.Context, c *cycle) KindResult
}

// fetch queries the application and decodes data.<field>.
func fetch[T any](ctx context.Context, c *cycle, document, field string) (T, bool, error) {
	var v T
	body, err := c.app.Query(ctx, document)
	if err != nil {
		return v, false, fmt.Errorf("query: %w", err)
	}
	found, err := ledger.Decode(body, field, &v)
	if err != nil {
		return v, false, fmt.Errorf("parse: %w", err)
	}
	return v, found, nil
}

// scalarKind holds a single value. A null response means nothing to write.
type scalarKind[T any] struct {
	name     string
	field    string
	document string
	table    storage.Table

	load func(*cache.Store) (T, bool)
	save func(*cache.Store, T)
	row  func(T) any
	key  func(T) string
}

func (k *scalarKind[T]) Name() string { return k.name }
func (k *scalarKind[T]) Document(string) string { return k.document }

func (k *scalarKind[T]) sync(ctx context.Context, c *cycle) KindResult {
	res := KindResult{Kind: k.name, Status: StatusUnchanged}
	log := c.log.With("kind", k.name)

	v, found, err := fetch[T](ctx, c, k.document, k.field)
	if err != nil {
		log.Warn("Fetch failed", "error", err)
		res.Status, res.Err = StatusFetchFailed, err
		return res
	}
	if !found {
		log.Debug("Nothing to sync")
		return res
	}

	if cached, ok := k.load(c.store); ok && reflect.DeepEqual(cached, v) {
		log.Debug("Unchanged")
		return res
	}

	if err := c.sink.Upsert(ctx, k.table, k.row(v)); err != nil {
		log.Error("Write failed", "table", k.table.Name, "error", err)
		res.Status, res.Err = StatusWriteFailed, err
		return res
	}
	k.save(c.store, v)
	c.emit(ctx, k.name, k.table, domain.WriteUpsert, []string{k.key(v)})

	res.Status, res.Writes = StatusUpdated, 1
	return res
}

// collectionKind holds a whole list compared order-insensitively by key and
// written with replace-all.
type collectionKind[T any] struct {
	name     string
	field    string
	document string
	table    storage.Table

	key  func(T) string
	load func(*cache.Store) (map[string]T, bool)
	save func(*cache.Store, []T)
	rows func([]T) any
}

func (k *collectionKind[T]) Name() string { return k.name }
func (k *collectionKind[T]) Document(string) string { return k.document }

func (k *collectionKind[T]) sync(ctx context.Context, c *cycle) KindResult {
	res := KindResult{Kind: k.name, Status: StatusUnchanged}
	log := c.log.With("kind", k.name)

	items, found, err := fetch[[]T](ctx, c, k.document, k.field)
	if err == nil && !found {
		// A null list is not an empty one; replacing with it would wipe the table.
		err = fmt.Errorf("parse: %w: %s", ErrNullList, k.field)
	}
	if err != nil {
		log.Warn("Fetch failed", "error", err)
		res.Status, res.Err = StatusFetchFailed, err
		return res
	}
	if items == nil {
		items = []T{}
	}

	fetched := make(map[string]T, len(items))
	for _, it := range items {
		fetched[k.key(it)] = it
	}
	if cached, ok := k.load(c.store); ok && reflect.DeepEqual(cached, fetched) {
		log.Debug("Unchanged", "entries", len(items))
		return res
	}

	if err := c.sink.ReplaceAll(ctx, k.table, k.rows(items)); err != nil {
		log.Error("Write failed", "table", k.table.Name, "error", err)
		res.Status, res.Err = StatusWriteFailed, err
		return res
	}
	k.save(c.store, items)
	c.emit(ctx, k.name, k.table, domain.WriteReplaceAll, sortedKeys(fetched))

	res.Status, res.Writes = StatusUpdated, 1
	return res
}

// keyedKind holds records keyed by id, optionally grouped by scope. Only
// records that differ from the cache are upserted, one write per key.
type keyedKind[T any] struct {
	name     string
	field    string
	table    storage.Table
	document func(scope string) string

	// scopes lists the groups to fetch; nil means one unscoped fetch.
	scopes func(*cycle) []string
	// fetched is told which records a scope returned.
	fetched func(c *cycle, items []T)

	key    func(T) string
	load   func(s *cache.Store, scope, key string) (T, bool)
	save   func(s *cache.Store, scope string, v T)
	row    func(scope string, v T) any
	rowKey func(scope string, v T) string
}

func (k *keyedKind[T]) Name() string { return k.name }
func (k *keyedKind[T]) Document(scope string) string { return k.document(scope) }

func (k *keyedKind[T]) sync(ctx context.Context, c *cycle) KindResult {
	res := KindResult{Kind: k.name, Status: StatusUnchanged}
	log := c.log.With("kind", k.name)

	scopes := []string{""}
	if k.scopes != nil {
		scopes = k.scopes(c)
	}

	var (
		keys          []string
		fetchFailures int
		writeFailures int
		firstErr      error
	)
	for _, scope := range scopes {
		items, found, err := fetch[[]T](ctx, c, k.document(scope), k.field)
		if err == nil && !found {
			err = fmt.Errorf("parse: %w: %s", ErrNullList, k.field)
		}
		if err != nil {
			log.Warn("Fetch failed", "scope", scope, "error", err)
			fetchFailures++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if k.fetched != nil {
			k.fetched(c, items)
		}

		for _, it := range items {
			key := k.key(it)
			if cached, ok := k.load(c.store, scope, key); ok && reflect.DeepEqual(cached, it) {
				continue
			}
			if err := c.sink.Upsert(ctx, k.table, k.row(scope, it)); err != nil {
				log.Error("Write failed", "table", k.table.Name, "key", key, "error", err)
				writeFailures++
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			k.save(c.store, scope, it)
			keys = append(keys, k.rowKey(scope, it))
		}
	}

	if len(keys) > 0 {
		c.emit(ctx, k.name, k.table, domain.WriteUpsert, keys)
	}
	res.Writes = len(keys)
	res.Err = firstErr

	switch {
	case writeFailures > 0:
		res.Status = StatusWriteFailed
	case fetchFailures > 0:
		res.Status = StatusFetchFailed
	case len(keys) > 0:
		res.Status = StatusUpdated
	default:
		log.Debug("Unchanged", "scopes", len(scopes))
	}
	return res
}

// discoveryKind offers child chain ids listed by a parent chain. It writes nothing.
type discoveryKind struct {
	field    string
	document string
}

func (k *discoveryKind) Name() string { return KindChains }
func (k *discoveryKind) Document(string) string { return k.document }

func (k *discoveryKind) sync(ctx context.Context, c *cycle) KindResult {
	res := KindResult{Kind: KindChains, Status: StatusUnchanged}
	log := c.log.With("kind", KindChains)

	if c.offer == nil {
		return res
	}

	ids, found, err := fetch[[]string](ctx, c, k.document, k.field)
	if err == nil && !found {
		err = fmt.Errorf("parse: %w: %s", ErrNullList, k.field)
	}
	if err != nil {
		log.Warn("Fetch failed", "error", err)
		res.Status, res.Err = StatusFetchFailed, err
		return res
	}

	for _, raw := range ids {
		id, err := domain.ParseChainID(raw)
		if err != nil {
			log.Warn("Skipping malformed chain id", "id", raw, "error", err)
			continue
		}
		if err := c.offer.Offer(ctx, id); err != nil {
			// Only fails when the cycle is cancelled.
			res.Status, res.Err = StatusFetchFailed, err
			return res
		}
		res.Writes++
	}
	if res.Writes > 0 {
		res.Status = StatusUpdated
		log.Debug("Offered chains", "count", res.Writes)
	}
	return res
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
