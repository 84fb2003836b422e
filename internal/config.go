package internal

import (
	"adoption-chat/errors"
	"adoption-chat/infrastructure/sqlstore"
	"fmt"
	"strings"
	"time"
)

const DriverBadger = "badger"

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,required=true"`
	StoreDriver          string        `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH"`
	DatabaseURL          string        `env:"DATABASE_URL"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,required=true"`
}

// Driver returns the normalized store driver and checks that its location is set.
func (c Config) Driver() (string, error) {
	driver := strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch driver {
	case DriverBadger:
		if c.BadgerFilepath == "" {
			return "", fmt.Errorf("BADGER_FILEPATH is required with STORE_DRIVER=%s", driver)
		}
	case sqlstore.DriverPostgres, sqlstore.DriverSQLite, "sqlite":
		if c.DatabaseURL == "" {
			return "", fmt.Errorf("DATABASE_URL is required with STORE_DRIVER=%s", driver)
		}
		if driver == "sqlite" {
			driver = sqlstore.DriverSQLite
		}
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownStoreDriver, c.StoreDriver)
	}
	return driver, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
