package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/imgloader/pkg/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
// It expects defaults to have been applied.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return errors.New("telemetry.profiling.endpoint is required when profiling is enabled")
	}

	return validateStore(&cfg.Store)
}

func validateStore(cfg *StoreConfig) error {
	switch cfg.Type {
	case store.TypeBadger:
		if cfg.Badger.Path == "" {
			return errors.New("store.badger.path is required for the badger store")
		}
	case store.TypeSQLite:
		if cfg.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required for the sqlite store")
		}
	case store.TypePostgres:
		var missing []string
		if cfg.Postgres.Host == "" {
			missing = append(missing, "host")
		}
		if cfg.Postgres.Database == "" {
			missing = append(missing, "database")
		}
		if cfg.Postgres.User == "" {
			missing = append(missing, "user")
		}
		if len(missing) > 0 {
			return fmt.Errorf("store.postgres requires: %s", strings.Join(missing, ", "))
		}
	case store.TypeS3:
		if cfg.S3.Bucket == "" {
			return errors.New("store.s3.bucket is required for the s3 store")
		}
		if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
			return errors.New("store.s3.access_key_id and store.s3.secret_access_key must be set together")
		}
	case store.TypeRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis store")
		}
	}
	return nil
}

// formatValidationErrors turns validator output into "field: failed 'tag'"
// lines keyed by the mapstructure path.
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s=%s' (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// fieldPath converts "Config.Loader.MaxConcurrent" to "Loader.MaxConcurrent".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
