/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// dialectSpec knows how to reach one kind of store.
type dialectSpec struct {
	driver     string
	dsn        func(cfg *ConnectionConfig) string
	newDialect func() schema.Dialect
	// singleConn is set for stores whose connections do not share state.
	singleConn func(cfg *ConnectionConfig) bool
}

var dialects = map[string]*dialectSpec{
	"mysql": {
		driver:     "mysql",
		dsn:        mysqlDSN,
		newDialect: func() schema.Dialect { return mysqldialect.New() },
	},
	"postgres": {
		driver:     "postgres",
		dsn:        postgresDSN,
		newDialect: func() schema.Dialect { return pgdialect.New() },
	},
	"sqlite": {
		driver:     sqliteshim.ShimName,
		dsn:        func(cfg *ConnectionConfig) string { return sqliteDSN(cfg.DBName) },
		newDialect: func() schema.Dialect { return sqlitedialect.New() },
		singleConn: func(cfg *ConnectionConfig) bool { return isSQLiteMemory(cfg.DBName) },
	},
}

func lookupDialect(typ string) (*dialectSpec, bool) {
	switch t := strings.ToLower(typ); t {
	case "postgresql":
		typ = "postgres"
	case "sqlite3":
		typ = "sqlite"
	default:
		typ = t
	}
	d, ok := dialects[typ]
	return d, ok
}

// open builds the pool and the Bun handle without touching the network.
func (d *dialectSpec) open(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open(d.driver, d.dsn(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s pool: %w", d.driver, err)
	}
	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if d.singleConn != nil && d.singleConn(cfg) {
		maxOpen, maxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return sqlDB, bun.NewDB(sqlDB, d.newDialect()), nil
}

func mysqlDSN(cfg *ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func sqliteDSN(name string) string {
	switch {
	case name == "" || name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasPrefix(name, "file:"), strings.HasSuffix(name, ".db"):
		return name
	default:
		return name + ".db"
	}
}

func isSQLiteMemory(name string) bool {
	return name == "" || strings.Contains(name, ":memory:") || strings.Contains(name, "mode=memory")
}
