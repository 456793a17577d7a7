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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	defaultConnectTimeout = 30 * time.Second
	healthPingTimeout     = 5 * time.Second
)

var errNotConnected = errors.New("database not connected")

type defaultDatabaseManager struct {
	config *ConnectionConfig
	logger Logger

	mu     sync.RWMutex
	db     *bun.DB
	sqlDB  *sql.DB
	status HealthStatus

	watchOnce sync.Once
	stopWatch chan struct{}
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// If config is nil, a default configuration is used.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaultConnectTimeout
	}
	return &defaultDatabaseManager{
		config:    config,
		logger:    GetLogger(),
		stopWatch: make(chan struct{}),
	}
}

// Connect opens the pool and pings it, retrying with exponential backoff
// until ConnectTimeout elapses.
func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.db != nil {
		return nil
	}
	d, ok := lookupDialect(dm.config.Type)
	if !ok {
		return fmt.Errorf("unsupported database type: %s", dm.config.Type)
	}

	sqlDB, db, err := d.open(dm.config)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := dm.pingWithRetry(ctx, db); err != nil {
		_ = db.Close()
		dm.status.LastError = err.Error()
		return fmt.Errorf("database connection test failed: %w", err)
	}
	dm.installHooks(db)
	db.RegisterModel(RegisteredModelInstances()...)

	dm.db, dm.sqlDB = db, sqlDB
	dm.status.Connected = true
	dm.status.LastError = ""

	if dm.config.HealthCheckInterval > 0 {
		dm.watchOnce.Do(func() { go dm.watch() })
	}
	dm.logger.Info("Database connected", "type", dm.config.Type, "host", dm.config.Host, "name", dm.config.DBName)
	return nil
}

func (dm *defaultDatabaseManager) pingWithRetry(ctx context.Context, db *bun.DB) error {
	ctx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxElapsedTime(dm.config.ConnectTimeout),
	)
	return backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		dm.logger.Warn("Database ping failed, retrying", "error", err, "wait", wait)
	})
}

func (dm *defaultDatabaseManager) installHooks(db *bun.DB) {
	if dm.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	} else {
		db.AddQueryHook(NewQueryLogHook(nil, false))
	}
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: dm.config.SlowQueryTime, logger: dm.logger})
	}
}

// Disconnect closes the pool and stops the health watcher.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	select {
	case <-dm.stopWatch:
	default:
		close(dm.stopWatch)
	}
	return dm.closeLocked()
}

// closeLocked releases the pool; the health watcher keeps running.
func (dm *defaultDatabaseManager) closeLocked() error {
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db, dm.sqlDB = nil, nil
	dm.status.Connected = false
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	dm.logger.Info("Database connection closed")
	return nil
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.logger.Info("Reconnecting to the database")
	dm.mu.Lock()
	err := dm.closeLocked()
	dm.mu.Unlock()
	if err != nil {
		dm.logger.Warn("Error closing previous connection", "error", err)
	}
	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return errNotConnected
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

// HealthCheck pings the store and records the outcome with pool usage.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	start := time.Now()
	dm.status.LastCheckTime = start
	if dm.db == nil {
		dm.status.Healthy = false
		dm.status.LastError = errNotConnected.Error()
		return dm.snapshotLocked()
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	err := dm.db.PingContext(pingCtx)

	dm.status.ResponseTime = time.Since(start)
	dm.status.Healthy = err == nil
	dm.status.Connected = err == nil
	dm.status.LastError = ""
	if err != nil {
		dm.status.LastError = err.Error()
	}
	stats := dm.sqlDB.Stats()
	dm.status.ActiveConns = stats.InUse
	dm.status.IdleConns = stats.Idle
	dm.status.MaxOpenConns = stats.MaxOpenConnections
	return dm.snapshotLocked()
}

func (dm *defaultDatabaseManager) snapshotLocked() *HealthStatus {
	s := dm.status
	return &s
}

// watch runs periodic health checks and reconnects with a bounded backoff
// when the store stops answering.
func (dm *defaultDatabaseManager) watch() {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), healthPingTimeout*2)
			status := dm.HealthCheck(ctx)
			cancel()
			if !status.Healthy && dm.config.EnableReconnect {
				dm.reconnectWithBackoff()
			}
		case <-dm.stopWatch:
			return
		}
	}
}

func (dm *defaultDatabaseManager) reconnectWithBackoff() {
	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(dm.config.ReconnectInterval),
		uint64(max(dm.config.MaxReconnectTries, 0)),
	)
	err := backoff.RetryNotify(func() error {
		select {
		case <-dm.stopWatch:
			return backoff.Permanent(errNotConnected)
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), dm.config.ConnectTimeout)
		defer cancel()
		return dm.Reconnect(ctx)
	}, policy, func(err error, wait time.Duration) {
		dm.logger.Warn("Reconnect failed, retrying", "error", err, "wait", wait)
	})
	if err != nil {
		dm.logger.Error("Giving up reconnecting", "error", err, "tries", dm.config.MaxReconnectTries)
		return
	}
	dm.logger.Info("Reconnect succeeded")
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
