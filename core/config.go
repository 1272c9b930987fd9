package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		TokenRateLimit     float64 // public slip downloads, per client IP per second
		TokenRateBurst     int
	}

	AdmissionConfig struct {
		BaseURL          string // used to build roll slip download links
		ContactEmail     string
		ContactPhone     string
		BulkWorkers      int
		NotifyQueueSize  int
		NotifyMaxRetries int
		NotifyRetryDelay time.Duration
		SlipRepairSpec   string // cron spec; empty disables the job
	}

	StorageConfig struct {
		ArtifactDir string
	}

	Config struct {
		AppName          string
		Build            string
		Env              string
		Debug            bool
		TestMode         bool
		SecretKey        string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Database  DatabaseConfig
		Server    ServerConfig
		Admission AdmissionConfig
		Storage   StorageConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig reads the configuration from the environment, after loading config/.env.<env> if present.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "MCM Admissions")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.user", "admissions")
	v.SetDefault("database.password", "admissions")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "admissions")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.tokenRateLimit", 1.0)
	v.SetDefault("server.tokenRateBurst", 5)

	v.SetDefault("admission.baseUrl", "http://localhost:8000")
	v.SetDefault("admission.contactEmail", "admissions@mcm.edu.pk")
	v.SetDefault("admission.contactPhone", "051-9269411")
	v.SetDefault("admission.bulkWorkers", 8)
	v.SetDefault("admission.notifyQueueSize", 256)
	v.SetDefault("admission.notifyMaxRetries", 3)
	v.SetDefault("admission.notifyRetryDelay", 2*time.Second)
	v.SetDefault("admission.slipRepairSpec", "@every 15m")

	v.SetDefault("storage.artifactDir", "media")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		DefaultFromEmail: *from,
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			TokenRateLimit:     v.GetFloat64("server.tokenRateLimit"),
			TokenRateBurst:     v.GetInt("server.tokenRateBurst"),
		},
		Admission: AdmissionConfig{
			BaseURL:          strings.TrimRight(v.GetString("admission.baseUrl"), "/"),
			ContactEmail:     v.GetString("admission.contactEmail"),
			ContactPhone:     v.GetString("admission.contactPhone"),
			BulkWorkers:      v.GetInt("admission.bulkWorkers"),
			NotifyQueueSize:  v.GetInt("admission.notifyQueueSize"),
			NotifyMaxRetries: v.GetInt("admission.notifyMaxRetries"),
			NotifyRetryDelay: v.GetDuration("admission.notifyRetryDelay"),
			SlipRepairSpec:   v.GetString("admission.slipRepairSpec"),
		},
		Storage: StorageConfig{
			ArtifactDir: v.GetString("storage.artifactDir"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests; it never reads the environment.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "MCM Admissions",
		Build:            "test",
		Env:              "TEST",
		Debug:            false,
		TestMode:         true,
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Address: "noreply@localhost"},
		Server: ServerConfig{
			JWTExpirationDelta: time.Hour,
			TokenRateLimit:     100,
			TokenRateBurst:     100,
		},
		Admission: AdmissionConfig{
			BaseURL:          "http://testserver",
			ContactEmail:     "admissions@test.pk",
			ContactPhone:     "000-0000000",
			BulkWorkers:      4,
			NotifyQueueSize:  16,
			NotifyMaxRetries: 1,
		},
	}
}
