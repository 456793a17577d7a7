// Package database provides connection management, YAML and environment
// configuration, store error classification, query hooks, health checks and
// a model registry built on top of Bun.
package database
