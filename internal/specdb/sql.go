package specdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQL layout read by LoadSQL. Field maps are stored as JSON objects in the
// same shape as the file snapshot; position columns carry database order.
const (
	queryServices = `SELECT id, name, short_name, namespace FROM services ORDER BY position`

	queryResources = `SELECT id, name, cloudformation_type, documentation, attributes, properties FROM resources ORDER BY position`

	queryTypeDefinitions = `SELECT id, name, documentation, properties FROM type_definitions ORDER BY position`

	queryRelations = `SELECT kind, from_id, to_id FROM relations ORDER BY position`
)

// sqlDriver maps a source URL to a database/sql driver name and DSN.
func sqlDriver(source string) (driver, dsn string, err error) {
	scheme := sourceScheme(source)
	rest := source[len(scheme)+len("://"):]
	switch scheme {
	case "sqlite3":
		if rest == "" {
			return "", "", fmt.Errorf("sqlite3 source %q has no path", source)
		}
		return "sqlite3", rest, nil
	case "postgres", "postgresql":
		return "postgres", source, nil
	case "pgx":
		return "pgx", "postgres://" + rest, nil
	default:
		return "", "", fmt.Errorf("no SQL driver for scheme %q", scheme)
	}
}

func openSQL(ctx context.Context, source string) (*Snapshot, error) {
	driver, dsn, err := sqlDriver(source)
	if err != nil {
		return nil, unreadable(err)
	}

	db, err := sql.Open(driver, strings.TrimSpace(dsn))
	if err != nil {
		return nil, unreadable(fmt.Errorf("open %s database: %w", driver, err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, unreadable(fmt.Errorf("ping %s database: %w", driver, err))
	}

	return LoadSQL(ctx, db)
}

// LoadSQL reads a full snapshot from db.
func LoadSQL(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	services, err := loadServices(ctx, db)
	if err != nil {
		return nil, err
	}
	resources, err := loadResources(ctx, db)
	if err != nil {
		return nil, err
	}
	types, err := loadTypeDefinitions(ctx, db)
	if err != nil {
		return nil, err
	}
	relations, err := loadRelations(ctx, db)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(services, resources, types, relations)
}

func loadServices(ctx context.Context, db *sql.DB) ([]*Service, error) {
	rows, err := db.QueryContext(ctx, queryServices)
	if err != nil {
		return nil, unreadable(fmt.Errorf("query services: %w", err))
	}
	defer rows.Close()

	var out []*Service
	for rows.Next() {
		svc := &Service{}
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.ShortName, &svc.CloudFormationNamespace); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, unreadable(err)
	}
	return out, nil
}

func loadResources(ctx context.Context, db *sql.DB) ([]*Resource, error) {
	rows, err := db.QueryContext(ctx, queryResources)
	if err != nil {
		return nil, unreadable(fmt.Errorf("query resources: %w", err))
	}
	defer rows.Close()

	var out []*Resource
	for rows.Next() {
		var (
			w            wireResource
			doc          sql.NullString
			attrs, props sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.Name, &w.CloudFormationType, &doc, &attrs, &props); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		w.Documentation = doc.String
		w.Attributes = json.RawMessage(attrs.String)
		w.Properties = json.RawMessage(props.String)

		data, err := json.Marshal(w)
		if err != nil {
			return nil, err
		}
		res := &Resource{}
		if err := json.Unmarshal(data, res); err != nil {
			return nil, fmt.Errorf("decode resource %s: %w", w.ID, err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, unreadable(err)
	}
	return out, nil
}

func loadTypeDefinitions(ctx context.Context, db *sql.DB) ([]*TypeDefinition, error) {
	rows, err := db.QueryContext(ctx, queryTypeDefinitions)
	if err != nil {
		return nil, unreadable(fmt.Errorf("query type definitions: %w", err))
	}
	defer rows.Close()

	var out []*TypeDefinition
	for rows.Next() {
		var (
			w     wireTypeDefinition
			doc   sql.NullString
			props sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.Name, &doc, &props); err != nil {
			return nil, fmt.Errorf("scan type definition: %w", err)
		}
		w.Documentation = doc.String
		w.Properties = json.RawMessage(props.String)

		data, err := json.Marshal(w)
		if err != nil {
			return nil, err
		}
		td := &TypeDefinition{}
		if err := json.Unmarshal(data, td); err != nil {
			return nil, fmt.Errorf("decode type definition %s: %w", w.ID, err)
		}
		out = append(out, td)
	}
	if err := rows.Err(); err != nil {
		return nil, unreadable(err)
	}
	return out, nil
}

func loadRelations(ctx context.Context, db *sql.DB) ([]Relation, error) {
	rows, err := db.QueryContext(ctx, queryRelations)
	if err != nil {
		return nil, unreadable(fmt.Errorf("query relations: %w", err))
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var rel Relation
		if err := rows.Scan(&rel.Kind, &rel.From, &rel.To); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, unreadable(err)
	}
	return out, nil
}
