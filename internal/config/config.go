package config

type Config struct {
	BaseURL  string
	HttpPort int
	Db       struct {
		Dsn         string
		Automigrate bool
	}
	Jwt struct {
		SecretKey string
	}
	Ledger struct {
		// Key material for the keyed integrity hashes. Rotating any of
		// these makes records hashed under the old value unverifiable;
		// see internal/secret.
		IntegritySecret    string
		RequestSecret      string
		VerificationSecret string
	}
	Notifications struct {
		Email string
	}
	Smtp struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	RedisServer  string
	KafkaServers string
}
