// Package config holds the named bot options. Options are registered with a default at
// init time and loaded from the sources once the process knows where to look.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ConfigSource returns the raw value of an option, or nil if it doesn't know it
type ConfigSource interface {
	GetValue(key string) interface{}
	Name() string
}

type ConfigOption struct {
	Name         string
	Description  string
	DefaultValue interface{}

	// LoadedValue has the same type as DefaultValue for int, bool and duration options
	LoadedValue interface{}

	// The source LoadedValue came from, nil for the default
	ConfigSource ConfigSource

	manager *ConfigManager
}

// LoadValue takes the value from the last added source that has one
func (opt *ConfigOption) LoadValue() {
	opt.LoadedValue = opt.DefaultValue
	opt.ConfigSource = nil

	sources := opt.manager.sources
	for i := len(sources) - 1; i >= 0; i-- {
		if v := sources[i].GetValue(opt.Name); v != nil {
			opt.LoadedValue = coerce(opt.DefaultValue, v)
			opt.ConfigSource = sources[i]
			return
		}
	}
}

func (opt *ConfigOption) GetString() string {
	switch t := opt.LoadedValue.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func (opt *ConfigOption) GetInt() int {
	n, _ := coerce(0, opt.LoadedValue).(int)
	return n
}

func (opt *ConfigOption) GetBool() bool {
	b, _ := coerce(false, opt.LoadedValue).(bool)
	return b
}

func (opt *ConfigOption) GetDuration() time.Duration {
	d, _ := coerce(time.Duration(0), opt.LoadedValue).(time.Duration)
	return d
}

// coerce converts a raw source value to the type of like.
// Strings become ints, bools (true/yes/on/enabled/1) and durations ("90s", or bare seconds).
func coerce(like, v interface{}) interface{} {
	switch like.(type) {
	case int:
		switch t := v.(type) {
		case int:
			return t
		case string:
			n, _ := strconv.Atoi(strings.TrimSpace(t))
			return n
		}
		return 0
	case bool:
		switch t := v.(type) {
		case bool:
			return t
		case int:
			return t > 0
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "yes", "on", "enabled", "1":
				return true
			}
		}
		return false
	case time.Duration:
		switch t := v.(type) {
		case time.Duration:
			return t
		case int:
			return time.Duration(t) * time.Second
		case string:
			t = strings.TrimSpace(t)
			if d, err := time.ParseDuration(t); err == nil {
				return d
			}
			n, _ := strconv.ParseInt(t, 10, 64)
			return time.Duration(n) * time.Second
		}
		return time.Duration(0)
	}

	return v
}

type ConfigManager struct {
	sources []ConfigSource
	Options map[string]*ConfigOption
}

func NewConfigManager() *ConfigManager {
	return &ConfigManager{Options: make(map[string]*ConfigOption)}
}

// AddSource adds a source, later sources override earlier ones
func (c *ConfigManager) AddSource(source ConfigSource) {
	c.sources = append(c.sources, source)
}

func (c *ConfigManager) RegisterOption(name, desc string, defaultValue interface{}) *ConfigOption {
	opt := &ConfigOption{
		Name:         name,
		Description:  desc,
		DefaultValue: defaultValue,
		LoadedValue:  defaultValue,
		manager:      c,
	}

	c.Options[name] = opt
	return opt
}

func (c *ConfigManager) Load() {
	for _, opt := range c.Options {
		opt.LoadValue()
	}
}

// Describe returns "name: description (source)" lines sorted by name
func (c *ConfigManager) Describe() []string {
	out := make([]string, 0, len(c.Options))
	for _, opt := range c.Options {
		source := "default"
		if opt.ConfigSource != nil {
			source = opt.ConfigSource.Name()
		}
		out = append(out, opt.Name+": "+opt.Description+" ("+source+")")
	}

	sort.Strings(out)
	return out
}

// Singleton is the manager the package level functions use
var Singleton = NewConfigManager()

func AddSource(source ConfigSource) {
	Singleton.AddSource(source)
}

func RegisterOption(name, desc string, defaultValue interface{}) *ConfigOption {
	return Singleton.RegisterOption(name, desc, defaultValue)
}

func Load() {
	Singleton.Load()
}
