package config

type PostgresSecretData struct {
	ConnectionString string `json:"connectionString"`
}

type GenAISecretData struct {
	APIKey string `json:"apiKey"`
}
