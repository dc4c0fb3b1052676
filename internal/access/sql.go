package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	"designer/internal/datadef"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/rs/zerolog/log"
)

func mysqlDSN(c datadef.MySQLConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Server, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Timeout = 5 * time.Second
	return cfg.FormatDSN()
}

func postgresDSN(c datadef.PostgresConfig) string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("search_path", c.Schema)
	q.Set("connect_timeout", "5")
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Server, c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// openSQL открывает отдельное соединение на вызов; пула между запросами нет.
func openSQL(ctx context.Context, ds datadef.DataSource) (*sql.DB, error) {
	var driver, dsn string
	switch ds.Type {
	case datadef.SourceMySQL:
		c, err := datadef.MySQL(ds.Config)
		if err != nil {
			return nil, err
		}
		driver, dsn = "mysql", mysqlDSN(c)
	case datadef.SourcePostgres:
		c, err := datadef.Postgres(ds.Config)
		if err != nil {
			return nil, err
		}
		driver, dsn = "pgx", postgresDSN(c)
	default:
		return nil, fmt.Errorf("%w: %s is not a SQL data source", ErrWrongSourceType, ds.Name)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrBackend, ds.Name, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: connect %s: %w", ErrBackend, ds.Name, err)
	}
	return db, nil
}

func querySQL(ctx context.Context, ds datadef.DataSource, query string, params ...any) ([]map[string]any, error) {
	db, err := openSQL(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	start := time.Now()
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", ErrBackend, ds.Name, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrBackend, ds.Name, err)
	}
	log.Debug().
		Str("dataSource", ds.Name).
		Str("type", string(ds.Type)).
		Int("rows", len(out)).
		Dur("took", time.Since(start)).
		Msg("sql query")
	return out, nil
}

// scanRows — строки в map по именам колонок; []byte превращаем в string.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryMySQL выполняет параметризованный запрос (плейсхолдеры "?").
func QueryMySQL(ctx context.Context, ds datadef.DataSource, query string, params ...any) ([]map[string]any, error) {
	if ds.Type != datadef.SourceMySQL {
		return nil, fmt.Errorf("%w: %s is %s, not mysql", ErrWrongSourceType, ds.Name, ds.Type)
	}
	return querySQL(ctx, ds, query, params...)
}

// QueryPostgres — то же для PostgreSQL (плейсхолдеры "$n").
func QueryPostgres(ctx context.Context, ds datadef.DataSource, query string, params ...any) ([]map[string]any, error) {
	if ds.Type != datadef.SourcePostgres {
		return nil, fmt.Errorf("%w: %s is %s, not postgres", ErrWrongSourceType, ds.Name, ds.Type)
	}
	return querySQL(ctx, ds, query, params...)
}

// buildInsert собирает INSERT с колонками в стабильном порядке.
func buildInsert(t datadef.SourceType, table string, row map[string]any) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, fmt.Errorf("%w: nothing to insert", ErrBadValue)
	}
	tbl, err := quoteIdent(t, table)
	if err != nil {
		return "", nil, err
	}
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		q, err := quoteIdent(t, c)
		if err != nil {
			return "", nil, err
		}
		quoted[i] = q
		marks[i] = placeholder(t, i+1)
		args[i] = sqlArg(row[c])
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	return stmt, args, nil
}

// sqlArg: массивы/объекты пишем JSON-текстом.
func sqlArg(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return toString(v)
	}
	return v
}

func insertSQL(ctx context.Context, ds datadef.DataSource, table string, row map[string]any) error {
	stmt, args, err := buildInsert(ds.Type, table, row)
	if err != nil {
		return err
	}
	db, err := openSQL(ctx, ds)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate record in %s", datadef.ErrConflict, table)
		}
		return fmt.Errorf("%w: insert into %s: %w", ErrBackend, table, err)
	}
	return nil
}

// isUniqueViolation: 23505 у Postgres, 1062 у MySQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
