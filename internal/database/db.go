package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Options describes the MySQL connection and its pool.  Zero pool values
// fall back to the defaults below.
type Options struct {
	User, Pass string
	Host, Port string
	Name       string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Timeout bounds dialing, each read and write, and the startup ping.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 25
	}
	if o.MaxIdleConns <= 0 || o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = o.MaxOpenConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// driverConfig maps o onto the driver's typed config.  Times are parsed
// into time.Time in UTC; migration files need multiple statements.
func driverConfig(o Options) *mysql.Config {
	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, o.Port)
	c.DBName = o.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.MultiStatements = true
	c.Timeout = o.Timeout
	c.ReadTimeout = o.Timeout
	c.WriteTimeout = o.Timeout
	c.Collation = "utf8mb4_unicode_ci"
	return c
}

// Open connects to MySQL and verifies the connection.
func Open(o Options) (*sql.DB, error) {
	o = o.withDefaults()
	connector, err := mysql.NewConnector(driverConfig(o))
	if err != nil {
		return nil, fmt.Errorf("mysql config: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), o.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql ping %s: %w", net.JoinHostPort(o.Host, o.Port), err)
	}
	return db, nil
}
