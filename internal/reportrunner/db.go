package reportrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Rows is the cursor over one procedure result set. *sql.Rows implements it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Caller invokes a stored procedure with positional parameters.
type Caller interface {
	CallProcedure(ctx context.Context, procedure string, params []Param) (Rows, error)
}

type procedureCaller struct {
	db     DBTX
	driver string
}

func (c procedureCaller) CallProcedure(ctx context.Context, procedure string, params []Param) (Rows, error) {
	stmt, err := callStatement(c.driver, procedure, params)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, stmt, paramArgs(params)...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// paramArgs binds params positionally in declared order.
func paramArgs(params []Param) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Value
	}
	return args
}

// Connection holds the single database connection used for a whole run.
type Connection struct {
	driver  string
	db      *sql.DB
	conn    *sql.Conn
	cleanup func()
}

func openConnection(ctx context.Context, cfg ConnConfig, password string) (*Connection, error) {
	driverName, dsn, cleanup, err := driverDSN(cfg, password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		cleanup()
		return nil, dbError("", "connect", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		cleanup()
		return nil, dbError("", "connect", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		cleanup()
		return nil, dbError("", "ping", err)
	}

	return &Connection{driver: cfg.Driver, db: db, conn: conn, cleanup: cleanup}, nil
}

func (c *Connection) Driver() string {
	return c.driver
}

func (c *Connection) Querier() DBTX {
	return c.conn
}

func (c *Connection) Caller() Caller {
	return procedureCaller{db: c.conn, driver: c.driver}
}

func (c *Connection) Close() error {
	if c == nil {
		return nil
	}
	err := errors.Join(c.conn.Close(), c.db.Close())
	c.cleanup()
	if err != nil {
		return dbError("", "close connection", err)
	}
	return nil
}

func driverDSN(cfg ConnConfig, password string) (driverName, dsn string, cleanup func(), err error) {
	cleanup = func() {}

	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Database
		if len(cfg.Params) > 0 {
			mc.Params = make(map[string]string, len(cfg.Params))
			for k, v := range cfg.Params {
				mc.Params[k] = v
			}
		}
		return "mysql", mc.FormatDSN(), cleanup, nil
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:   "/" + cfg.Database,
		}
		if password != "" {
			u.User = url.UserPassword(cfg.User, password)
		} else {
			u.User = url.User(cfg.User)
		}
		if len(cfg.Params) > 0 {
			q := url.Values{}
			for k, v := range cfg.Params {
				q.Set(k, v)
			}
			u.RawQuery = q.Encode()
		}

		pc, err := pgx.ParseConfig(u.String())
		if err != nil {
			return "", "", nil, fmt.Errorf("parse postgres config: %w", err)
		}
		name := stdlib.RegisterConnConfig(pc)
		return "pgx", name, func() { stdlib.UnregisterConnConfig(name) }, nil
	case "sqlite":
		return "sqlite", strings.TrimSpace(cfg.Database), cleanup, nil
	default:
		return "", "", nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
