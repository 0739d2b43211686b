package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	mongoURIVar   = "MONGO_URI"
	mongoDBVar    = "MONGO_DATABASE"
	tokenSecret   = "TOKEN_SECRET"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Wanderport Backoffice")
}

func (EnvVars) GetMongoURI() string {
	return GetEnv(mongoURIVar, "mongodb://localhost:27017")
}

func (EnvVars) GetMongoDatabase() string {
	return GetEnv(mongoDBVar, "backoffice")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
