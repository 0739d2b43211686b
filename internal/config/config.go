package config

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	CleanupConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetMongoURI() string
	GetMongoDatabase() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Token
	Cleanup
}

func New() Config {
	return mainConfig{}
}
