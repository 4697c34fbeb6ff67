package config

import "time"

// Database connection pool settings
const (
	DBMaxConns        = 25
	DBMinConns        = 5
	DBConnMaxLifetime = 30 * time.Minute
	DBConnMaxIdleTime = 5 * time.Minute
	DBConnectTimeout  = 10 * time.Second
	MigrationTimeout  = 30 * time.Second
)

// HTTP server timeouts
const (
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 45 * time.Second
	ServerIdleTimeout     = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Background job settings
const (
	CleanupTickTimeout     = 30 * time.Second
	WorkerPopTimeout       = 30 * time.Second
	WorkerJobLockTTL       = 10 * time.Minute
	AnalyticsRetentionDays = 30
)
