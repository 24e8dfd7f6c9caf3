package config

import "time"

type Config struct {
	Web   Web
	DB    DB
	Cors  Cors
	Auth  Auth
	Redis Redis
	Kafka Kafka
	Rate  Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:storefront"`
	DisableTLS bool   `conf:"default:true"`
}

type Cors struct {
	Origin string
}

type Auth struct {
	// TokenSecret verifies bearer tokens issued by the accounts
	// service. This server never issues tokens itself.
	TokenSecret string `conf:"mask"`
}

type Redis struct {
	// URL enables the cart read cache when set, e.g.
	// redis://localhost:6379/0.
	URL string
}

type Kafka struct {
	// Brokers enables event publishing when non-empty.
	Brokers []string
	Topic   string   `conf:"default:storefront.events"`
}

type Rate struct {
	RequestsPerSecond float64 `conf:"default:20"`
	Burst             int     `conf:"default:40"`
	ExpiryMinutes     int     `conf:"default:10"`
}
