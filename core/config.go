package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type (
	ServerConfig struct {
		Host string
		Port int
	}

	StoreConfig struct {
		Driver  string // StoreMemory | StorePostgres
		DSN     string
		Channel string // LISTEN/NOTIFY channel
		Table   string
	}

	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		AppName      string
		Build        string
		Debug        bool
		TestMode     bool
		RollbarToken string
		Server       ServerConfig
		Store        StoreConfig
	}
)

func (sc ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

// NewConfig loads the app config from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name, e.g. `DEV_STORE_DRIVER=postgres`.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Gradebook")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.channel", "gradebook_kv")
	v.SetDefault("store.table", "kv_entries")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	root, err := Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "finding project root")
	}
	dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(v.GetString("store.driver")),
			DSN:     v.GetString("store.dsn"),
			Channel: v.GetString("store.channel"),
			Table:   v.GetString("store.table"),
		},
	}
	switch conf.Store.Driver {
	case StoreMemory, StorePostgres:
	default:
		return nil, errors.Errorf("unknown store driver %q", conf.Store.Driver)
	}
	return conf, nil
}
