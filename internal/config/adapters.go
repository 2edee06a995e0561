package config

import (
	"github.com/garyjia/toolcrib/pkg/database"
	"github.com/garyjia/toolcrib/pkg/utils"
)

// ToDatabaseConfig converts the database section into the pkg/database
// connection settings.
func (c DatabaseConfig) ToDatabaseConfig() database.Config {
	return database.Config{
		Driver:          c.Driver,
		Host:            c.Host,
		Port:            c.Port,
		Name:            c.Name,
		User:            c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		Path:            c.Path,
		MinConns:        c.MinConns,
		MaxConns:        c.MaxConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// ToLoggerConfig converts the logger section for utils.NewLogger
func (c LoggerConfig) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Level,
		OutputPath: c.OutputPath,
		Format:     c.Format,
	}
}
