package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultServerAddr            = ":4000"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 15 * time.Second
	DefaultServerIdleTimeout     = 60 * time.Second
	DefaultServerShutdownTimeout = 30 * time.Second
	DefaultServerBodyLimit       = "1M"

	DefaultDBPath = "getout.db"
	// SQLite doesn't support concurrent writes.
	DefaultDBMaxOpenConns    = 1
	DefaultDBMaxIdleConns    = 1
	DefaultDBConnMaxLifetime = 5 * time.Minute

	DefaultAsyncMaxWorkers = 4

	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"

	// SQLMaintenanceTask is the registry key of the VACUUM task.
	SQLMaintenanceTask            = "sql_maintenance"
	DefaultSQLMaintenanceSchedule = "0 0 3 * * *"
)

// setDefaults registers every known key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	v.SetDefault("server.idle_timeout", DefaultServerIdleTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("server.body_limit", DefaultServerBodyLimit)

	v.SetDefault("database.path", DefaultDBPath)
	v.SetDefault("database.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("database.max_idle_conns", DefaultDBMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", DefaultDBConnMaxLifetime)

	v.SetDefault("scheduler.tasks", map[string]any{
		SQLMaintenanceTask: map[string]any{
			"enabled":      true,
			"schedule":     DefaultSQLMaintenanceSchedule,
			"run_on_start": false,
		},
	})

	v.SetDefault("async.max_workers", DefaultAsyncMaxWorkers)

	v.SetDefault("metrics.enabled", DefaultMetricsEnabled)
	v.SetDefault("metrics.path", DefaultMetricsPath)
}
