package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvSource reads options from the environment, see EnvName
type EnvSource struct{}

// EnvName is the environment variable of an option, yuzu.db.path is YUZU_DB_PATH
func EnvName(option string) string {
	return strings.ToUpper(strings.ReplaceAll(option, ".", "_"))
}

func (e *EnvSource) GetValue(key string) interface{} {
	v := os.Getenv(EnvName(key))
	if v == "" {
		return nil
	}
	return v
}

func (e *EnvSource) Name() string {
	return "env"
}

// DotEnvSource reads a .env style file once, keys use the same form as EnvSource
type DotEnvSource struct {
	Path   string
	values map[string]string
}

// NewDotEnvSource returns a source backed by the file at path, a missing file yields an empty source
func NewDotEnvSource(path string) (*DotEnvSource, error) {
	s := &DotEnvSource{Path: path, values: make(map[string]string)}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}

	s.values = values
	return s, nil
}

func (d *DotEnvSource) GetValue(key string) interface{} {
	v, ok := d.values[EnvName(key)]
	if !ok || v == "" {
		return nil
	}
	return v
}

func (d *DotEnvSource) Name() string {
	return "dotenv"
}

// MapSource is a static source, mostly useful for tests and flags
type MapSource map[string]interface{}

func (m MapSource) GetValue(key string) interface{} {
	return m[key]
}

func (m MapSource) Name() string {
	return "map"
}
