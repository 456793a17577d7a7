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
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// AbstractDatabaseManager defines the operations for managing a database
// connection and reporting its health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// AbstractDatabaseConfigProvider exposes configuration loading.
type AbstractDatabaseConfigProvider interface {
	ConfigLoader() *Config
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
// env tags are read with the DB_ prefix, e.g. DB_HOST.
type ConnectionConfig struct {
	Type                string        `yaml:"type" env:"TYPE"` // postgres, mysql, sqlite
	Host                string        `yaml:"host" env:"HOST"`
	Port                int           `yaml:"port" env:"PORT"`
	Username            string        `yaml:"username" env:"USERNAME"`
	Password            string        `yaml:"password" env:"PASSWORD"`
	DBName              string        `yaml:"dbname" env:"NAME"` // file path or ":memory:" for sqlite
	SSLMode             string        `yaml:"sslmode" env:"SSLMODE"`
	MaxIdleConns        int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	MaxOpenConns        int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	ReadTimeout         time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout        time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	EnableReconnect     bool          `yaml:"enable_reconnect" env:"ENABLE_RECONNECT"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval" env:"RECONNECT_INTERVAL"`
	MaxReconnectTries   int           `yaml:"max_reconnect_tries" env:"MAX_RECONNECT_TRIES"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
	EnableQueryLog      bool          `yaml:"enable_query_log" env:"ENABLE_QUERY_LOG"`
	SlowQueryTime       time.Duration `yaml:"slow_query_time" env:"SLOW_QUERY_TIME"`
}

// PaginationConfig bounds the page sizes handed to repositories.
type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size" env:"DEFAULT_PAGE_SIZE"`
	MaxPageSize     int `yaml:"max_page_size" env:"MAX_PAGE_SIZE"`
}

// Config aggregates connection and listing settings.
type Config struct {
	ConnectionConfig ConnectionConfig `yaml:"connection"`
	PaginationConfig PaginationConfig `yaml:"pagination"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		EnableQueryLog:      false,
		SlowQueryTime:       time.Second * 2,
	}
}

// DefaultPaginationConfig mirrors the usual 50 per page, 100 max.
func DefaultPaginationConfig() *PaginationConfig {
	return &PaginationConfig{DefaultPageSize: 50, MaxPageSize: 100}
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		ConnectionConfig: *DefaultConnectionConfig(),
		PaginationConfig: *DefaultPaginationConfig(),
	}
}
