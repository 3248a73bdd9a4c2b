// Package surreal implements the [store.Adapter] contract on SurrealDB.
//
// The implementation executes native SurrealQL through the official SDK and
// relies on a custom CBOR codec for marshaling. SurrealDB stores records as
// CBOR internally, and the default Go marshaling does not produce compatible
// encodings for time.Time or record IDs. The surrealcbor codec gives full
// control over both directions.
//
// All queries are parameterized with $param bindings. Never interpolate
// user-provided values into query strings.
package surreal

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/mystira/polystore/pkg/store"
)

// Config holds the connection parameters for a SurrealDB endpoint.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Connect opens a WebSocket connection to SurrealDB with the surrealcbor
// codec installed, authenticates when credentials are present, and selects
// the configured namespace and database.
//
// The returned handle is shared across all [Store] instances. Tables are
// created implicitly on first insert, so there is no schema migration step.
func Connect(ctx context.Context, cfg Config) (*surrealdb.DB, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)

	// The surrealcbor codec is required for correct time.Time and RecordID
	// round-tripping. The default marshaler produces encodings SurrealDB
	// rejects as invalid datetimes.
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return db, nil
}

// Store is a SurrealDB-backed adapter for one table.
type Store[T store.Entity] struct {
	db    *surrealdb.DB
	table string
}

// New creates an adapter over the given connection and table.
func New[T store.Entity](db *surrealdb.DB, table string) *Store[T] {
	return &Store[T]{db: db, table: table}
}

// isNotFound reports whether err is the SDK's way of signaling an empty
// result from a record select. The SDK surfaces this as an unmarshal error
// rather than a sentinel.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Expected a single or multiple results but got 0") ||
		strings.Contains(msg, "cannot unmarshal array into Go value")
}

func (s *Store[T]) recordID(id string) surrealdbmodels.RecordID {
	return surrealdbmodels.RecordID{Table: s.table, ID: id}
}

func (s *Store[T]) Get(ctx context.Context, id string) (*T, error) {
	entity, err := surrealdb.Select[T](ctx, s.db, s.recordID(id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, store.Transient(fmt.Errorf("failed to get %s record: %w", s.table, err))
	}
	return entity, nil
}

// Upsert writes the entity under its ID, creating or replacing the record.
// UPSERT is a single atomic statement, which keeps retries idempotent.
func (s *Store[T]) Upsert(ctx context.Context, entity *T) error {
	query := "UPSERT type::thing($tb, $id) CONTENT $data"
	params := map[string]any{
		"tb":   s.table,
		"id":   (*entity).EntityID(),
		"data": entity,
	}
	if _, err := surrealdb.Query[T](ctx, s.db, query, params); err != nil {
		return store.Transient(fmt.Errorf("failed to upsert %s record: %w", s.table, err))
	}
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if _, err := surrealdb.Delete[T](ctx, s.db, s.recordID(id)); err != nil {
		if isNotFound(err) {
			return nil
		}
		return store.Transient(fmt.Errorf("failed to delete %s record: %w", s.table, err))
	}
	return nil
}

func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	query := "SELECT VALUE record::id(id) FROM type::thing($tb, $id)"
	params := map[string]any{
		"tb": s.table,
		"id": id,
	}
	result, err := surrealdb.Query[[]string](ctx, s.db, query, params)
	if err != nil {
		return false, store.Transient(fmt.Errorf("failed to check %s record: %w", s.table, err))
	}
	if result != nil && len(*result) > 0 && len((*result)[0].Result) > 0 {
		return true, nil
	}
	return false, nil
}

// Page scans the table in ascending record ID order. The cursor is the plain
// ID portion of the last record returned by the previous page.
func (s *Store[T]) Page(ctx context.Context, cursor string, limit int) ([]*T, string, error) {
	query := `SELECT * FROM type::table($tb)
		WHERE record::id(id) > $after
		ORDER BY id ASC
		LIMIT $limit`
	params := map[string]any{
		"tb":    s.table,
		"after": cursor,
		"limit": limit,
	}
	result, err := surrealdb.Query[[]T](ctx, s.db, query, params)
	if err != nil {
		return nil, "", store.Transient(fmt.Errorf("failed to page %s records: %w", s.table, err))
	}

	var items []*T
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			items = append(items, &(*result)[0].Result[i])
		}
	}

	next := ""
	if len(items) == limit && limit > 0 {
		next = (*items[len(items)-1]).EntityID()
	}
	return items, next, nil
}

func (s *Store[T]) Ping(ctx context.Context) error {
	if _, err := surrealdb.Query[bool](ctx, s.db, "RETURN true", nil); err != nil {
		return store.Transient(fmt.Errorf("surrealdb ping: %w", err))
	}
	return nil
}
