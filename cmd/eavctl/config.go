// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// config.go — loads eav.Config and the bag list from EAV_* environment
// variables and an optional .env file through viper.

package main

import (
	"fmt"
	"strings"

	"github.com/AndrewDonelson/eav"
	"github.com/AndrewDonelson/eav/internal/codec"
	"github.com/spf13/viper"
)

// settings is everything eavctl reads from its environment.
type settings struct {
	DB       eav.Config
	Bags     []eav.BagSchema
	LogLevel string
}

// initViper points v at the optional config file and EAV_* variables.
func initViper(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	// Environment variables take precedence over the config file
	v.SetEnvPrefix("EAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ROW_CACHE_TTL", "30m")
	v.SetDefault("KEY_CACHE_TTL", "5m")
	v.SetDefault("OBJECT_CODEC", "yaml")
	return nil
}

// loadSettings builds settings from v.
func loadSettings(v *viper.Viper) (*settings, error) {
	blob := codec.ByName(v.GetString("OBJECT_CODEC"))
	if blob == nil {
		return nil, fmt.Errorf("unknown OBJECT_CODEC %q (want yaml, json or msgpack)", v.GetString("OBJECT_CODEC"))
	}
	bags, err := parseBags(v.GetString("BAGS"))
	if err != nil {
		return nil, err
	}
	return &settings{
		DB: eav.Config{
			PostgresDSN:        v.GetString("POSTGRES_DSN"),
			PostgresReplicaDSN: v.GetString("POSTGRES_REPLICA_DSN"),
			RedisAddr:          v.GetString("REDIS_ADDR"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			RedisKeyPrefix:     v.GetString("REDIS_PREFIX"),
			RowCacheTTL:        v.GetDuration("ROW_CACHE_TTL"),
			BoltPath:           v.GetString("BOLT_PATH"),
			KeyCacheTTL:        v.GetDuration("KEY_CACHE_TTL"),
			ObjectCodec:        blob,
		},
		Bags:     bags,
		LogLevel: v.GetString("LOG_LEVEL"),
	}, nil
}

// parseBags reads a comma-separated list of "owner.name" or "name" entries.
func parseBags(list string) ([]eav.BagSchema, error) {
	var out []eav.BagSchema
	for _, def := range strings.Split(list, ",") {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		s, err := parseBag(def)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseBag(def string) (eav.BagSchema, error) {
	owner, name, found := strings.Cut(def, ".")
	if !found {
		return eav.BagSchema{Name: owner}, nil
	}
	if owner == "" || name == "" || strings.Contains(name, ".") {
		return eav.BagSchema{}, fmt.Errorf("bad bag %q (want owner.name)", def)
	}
	return eav.BagSchema{Name: name, Owner: owner}, nil
}
