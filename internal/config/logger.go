package config

// LoggerConfig controls the zap logger. Output is stdout or file; file
// output rotates through lumberjack.
type LoggerConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout or file
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Color      bool
	Stacktrace bool
	TimeZone   string
	TimeFormat string
}

func LoadLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      envStr("LOG_LEVEL", "info"),
		Format:     envStr("LOG_FORMAT", "json"),
		Output:     envStr("LOG_OUTPUT", "stdout"),
		FilePath:   envStr("LOG_FILE_PATH", "logs/techtrack.log"),
		MaxSize:    envInt("LOG_MAX_SIZE", 100),
		MaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		MaxAge:     envInt("LOG_MAX_AGE", 7),
		Compress:   envBool("LOG_COMPRESS", false),
		Color:      envBool("LOG_COLOR", false),
		Stacktrace: envBool("LOG_STACKTRACE", false),
		TimeZone:   envStr("LOG_TIMEZONE", "UTC"),
		TimeFormat: envStr("LOG_TIME_FORMAT", "2006-01-02T15:04:05.000Z07:00"),
	}
}
