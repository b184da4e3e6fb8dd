// Copyright (C) 2025 Convolake, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the application.
type Config struct {
	Dataset DatasetConfig `mapstructure:"dataset"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Migrate MigrateConfig `mapstructure:"migrate"`
	Server  ServerConfig  `mapstructure:"server"`
}

// DatasetConfig identifies the dataset and the endpoints it is reached
// through.
type DatasetConfig struct {
	ID      string `mapstructure:"id"`
	HubBase string `mapstructure:"hub_base"`
	APIBase string `mapstructure:"api_base"`
}

// FetchConfig tunes the row transports.
type FetchConfig struct {
	// Transport selects "rowsapi" or "columnar".
	Transport string        `mapstructure:"transport"`
	PageSize  int           `mapstructure:"page_size"`
	MaxPages  int           `mapstructure:"max_pages"`
	PageDelay time.Duration `mapstructure:"page_delay"`
	MaxRows   int           `mapstructure:"max_rows"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type MigrateConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration for the public ShareLM dataset and a
// local MongoDB.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			ID: "shachardon/ShareLM",
		},
		Fetch: FetchConfig{
			Transport: "rowsapi",
			MaxRows:   500,
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "sharelm",
			Collection: "conversations",
		},
		Migrate: MigrateConfig{
			BatchSize: 1000,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "CONVOLAKE" and the dot character
// in keys is replaced by an underscore. For example, "mongo.uri" becomes
// "CONVOLAKE_MONGO_URI".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("CONVOLAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
