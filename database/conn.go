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
	"fmt"

	"github.com/uptrace/bun"
)

var (
	globalFactory *BaseDatabaseFactory
	globalConfig  *Config
)

// GetDB returns the current global Bun database instance. A reconnect
// replaces it, so callers should not hold on to the result.
func GetDB() *bun.DB {
	if globalFactory != nil {
		return globalFactory.GetDB()
	}
	return nil
}

// GetConfig returns the configuration passed to InitDB, or the defaults.
func GetConfig() *Config {
	if globalConfig != nil {
		return globalConfig
	}
	return DefaultConfig()
}

// GetDatabaseManager returns the global database manager.
func GetDatabaseManager() AbstractDatabaseManager {
	if globalFactory != nil {
		return globalFactory.GetManager()
	}
	return nil
}

// GetDatabaseFactory returns the global database factory.
func GetDatabaseFactory() *BaseDatabaseFactory {
	return globalFactory
}

// InitDB connects the global database. Every connect registers the models
// known to RegisterModel with the new handle.
func InitDB(cfg *Config) (*bun.DB, error) {
	return InitDBWithContext(context.Background(), cfg)
}

// InitDBWithContext is InitDB bounded by ctx.
func InitDBWithContext(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	manager, err := factory.CreateFromConfig(&cfg.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	globalFactory = factory
	globalConfig = cfg
	return manager.GetDB(), nil
}

// CloseDB closes the global database connection.
func CloseDB() error {
	if globalFactory == nil {
		return nil
	}
	err := globalFactory.Close()
	globalFactory = nil
	return err
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if globalFactory != nil {
		return globalFactory.GetHealthStatus(ctx)
	}
	return &HealthStatus{
		Healthy:   false,
		Connected: false,
		LastError: "Database not initialized",
	}
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	if globalFactory != nil {
		return globalFactory.GetStats()
	}
	return &DBStats{}
}

// CreateRegisteredTables creates the tables of all registered models on the
// global database. Intended for development and tests.
func CreateRegisteredTables(ctx context.Context) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return CreateTables(ctx, db)
}
