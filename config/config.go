package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"sfr-ingest"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (canonical record store)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"sfr"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (authority lookup cache)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Authority lookup service (VIAF/LCNAF)
	AuthorityBaseURL        string        `env:"AUTHORITY_BASE_URL" env-default:""`
	AuthorityTimeout        time.Duration `env:"AUTHORITY_TIMEOUT" env-default:"5s"`
	AuthorityCacheTTL       time.Duration `env:"AUTHORITY_CACHE_TTL" env-default:"168h"` // 7 days
	AuthorityLookupsEnabled bool          `env:"AUTHORITY_LOOKUPS_ENABLED" env-default:"true"`

	// Kafka Consumer (inbound record envelopes)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaWorkTopic       string   `env:"KAFKA_WORK_TOPIC" env-default:"sfr-works"`
	KafkaInstanceTopic   string   `env:"KAFKA_INSTANCE_TOPIC" env-default:"sfr-instances"`
	KafkaItemTopic       string   `env:"KAFKA_ITEM_TOPIC" env-default:"sfr-items"`
	KafkaCoverTopic      string   `env:"KAFKA_COVER_TOPIC" env-default:"sfr-covers"`
	KafkaClusterTopic    string   `env:"KAFKA_CLUSTER_TOPIC" env-default:"sfr-cluster"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"sfr-ingest-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer settings
	KafkaUpdateTopic  string `env:"KAFKA_UPDATE_TOPIC" env-default:"sfr-updates"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Processing
	MaxRecordAttempts  int     `env:"MAX_RECORD_ATTEMPTS" env-default:"3"`
	FuzzyNameThreshold float64 `env:"FUZZY_NAME_THRESHOLD" env-default:"0.95"`
	ClusterYearWeight  float64 `env:"CLUSTER_YEAR_WEIGHT" env-default:"1.5"`
}
