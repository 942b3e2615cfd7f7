package config

// Database connection parameters for cycle history persistence.
var (
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// WebListenAddr serves the dashboard and metrics endpoints.
	WebListenAddr string
)

func loadDatabaseConfig() error {
	var err error

	DBHost = getEnvOr("SVM_DB_HOST", "localhost")
	DBPort, err = getEnvAsIntOr("SVM_DB_PORT", 5432)
	if err != nil {
		return err
	}
	DBUser = getEnvOr("SVM_DB_USER", "svm")
	DBPassword = getEnvOr("SVM_DB_PASSWORD", "")
	DBName = getEnvOr("SVM_DB_NAME", "svm")
	DBSSLMode = getEnvOr("SVM_DB_SSLMODE", "disable")

	WebListenAddr = getEnvOr("SVM_WEB_LISTEN_ADDR", ":8080")

	return nil
}
