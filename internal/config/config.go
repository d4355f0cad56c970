package config

import (
	"path"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/env"

	"go.uber.org/zap"
)

const (
	PortEnv        = "PORT"
	DatabaseUrlEnv = "DATABASE_URL"
	RootPathEnv    = "ROOT_PATH"

	JWTSigningKeyEnv          = "JWT_SIGNING_KEY"
	LoginSessionDurationEnv   = "LOGIN_SESSION_DURATION"
	LoginSessionGCIntervalEnv = "LOGIN_SESSION_GC_INTERVAL"

	MaxSessionDurationHoursEnv    = "MAX_SESSION_DURATION_HOURS"
	DodoUniquenessCheckEnabledEnv = "DODO_UNIQUENESS_CHECK_ENABLED"
)

type Config struct {
	Logger *zap.Logger

	Port           int
	DatabaseURL    string
	MigrationsPath string

	JWTSigningKey          []byte
	LoginSessionDuration   time.Duration
	LoginSessionGCInterval time.Duration

	MaxSessionDurationHours    int
	DodoUniquenessCheckEnabled bool
}

func Load() (Config, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return Config{}, err
	}

	port := env.MustGetInt(PortEnv)
	dbURL := env.MustGetString(DatabaseUrlEnv)
	rootPath := env.MustGetString(RootPathEnv)

	jwtKey := env.MustGetString(JWTSigningKeyEnv)
	sessionDuration := env.MustGetDuration(LoginSessionDurationEnv)
	gcInterval := env.MustGetDuration(LoginSessionGCIntervalEnv)

	migrationsPath := path.Join(rootPath, "db", "migrations")

	return Config{
		Logger:                     logger,
		Port:                       port,
		DatabaseURL:                dbURL,
		MigrationsPath:             migrationsPath,
		JWTSigningKey:              []byte(jwtKey),
		LoginSessionDuration:       sessionDuration,
		LoginSessionGCInterval:     gcInterval,
		MaxSessionDurationHours:    env.GetInt(MaxSessionDurationHoursEnv, 24),
		DodoUniquenessCheckEnabled: env.GetBool(DodoUniquenessCheckEnabledEnv, true),
	}, nil
}
