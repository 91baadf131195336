package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "MANDI"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MANDI_DB_DSN"
	EnvDBHost = "MANDI_DB_HOST"
	EnvDBUser = "MANDI_DB_USER"
	EnvDBName = "MANDI_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
