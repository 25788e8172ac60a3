// Copyright 2025 CompliK Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultEnvPrefix is prepended to every environment override.
const DefaultEnvPrefix = "ROUNDWORM"

// EnvLoader overrides configuration fields from environment variables.
// Field "collector.host" maps to ROUNDWORM_COLLECTOR_HOST.
type EnvLoader struct {
	prefix     string
	separator  string
	mapping    map[string]string
	converters map[string]TypeConverter
	lookup     func(string) (string, bool)
}

// TypeConverter turns the raw string of one variable into a field value.
type TypeConverter interface {
	Convert(value string) (interface{}, error)
}

// NewEnvLoader creates an environment loader for the given prefix.
func NewEnvLoader(prefix string) *EnvLoader {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	return &EnvLoader{
		prefix:    strings.ToUpper(prefix),
		separator: "_",
		mapping:   make(map[string]string),
		converters: map[string]TypeConverter{
			"watcher.roots": &StringSliceConverter{Separator: RootSeparator},
		},
		lookup: os.LookupEnv,
	}
}

// AddMapping binds a field to a custom variable name.
func (e *EnvLoader) AddMapping(field, envKey string) *EnvLoader {
	e.mapping[field] = envKey
	return e
}

// AddConverter sets a custom converter for a field.
func (e *EnvLoader) AddConverter(field string, converter TypeConverter) *EnvLoader {
	e.converters[field] = converter
	return e
}

// LoadFromEnv applies every override present in the environment.
func (e *EnvLoader) LoadFromEnv(config *models.Config) error {
	configMap := map[string]interface{}{
		"collector.host":            &config.Collector.Host,
		"collector.port":            &config.Collector.Port,
		"collector.dial_timeout":    &config.Collector.DialTimeout,
		"collector.write_timeout":   &config.Collector.WriteTimeout,
		"collector.reconnect.rate":  &config.Collector.Reconnect.Rate,
		"collector.reconnect.burst": &config.Collector.Reconnect.Burst,
		"watcher.roots":             &config.Watcher.Roots,
		"watcher.timeout":           &config.Watcher.Timeout,
		"monitor.proc_path":         &config.Monitor.ProcPath,
		"monitor.poll_interval":     &config.Monitor.PollInterval,
		"users.path":                &config.Users.Path,
		"logging.level":             &config.Logging.Level,
		"logging.syslog":            &config.Logging.Syslog,
		"metrics.enabled":           &config.Metrics.Enabled,
		"metrics.port":              &config.Metrics.Port,
		"api.enabled":               &config.API.Enabled,
		"api.port":                  &config.API.Port,
	}
	return e.loadConfigMap(configMap)
}

func (e *EnvLoader) loadConfigMap(configMap map[string]interface{}) error {
	for field, target := range configMap {
		envValue, ok := e.lookup(e.getEnvKey(field))
		if !ok || envValue == "" {
			continue
		}

		convertedValue, err := e.convertValue(field, envValue, target)
		if err != nil {
			return fmt.Errorf("field '%s' conversion failed: %w", field, err)
		}

		if err := setFieldValue(target, convertedValue); err != nil {
			return fmt.Errorf("failed to set field '%s': %w", field, err)
		}

		legacy.L.WithFields(logrus.Fields{
			"field":   field,
			"env_key": e.getEnvKey(field),
		}).Debug("Configuration overridden from environment")
	}
	return nil
}

func (e *EnvLoader) getEnvKey(field string) string {
	if customKey, exists := e.mapping[field]; exists {
		return customKey
	}
	key := strings.ReplaceAll(field, ".", e.separator)
	key = strings.ReplaceAll(key, "-", "_")
	return e.prefix + e.separator + strings.ToUpper(key)
}

func (e *EnvLoader) convertValue(field, value string, target interface{}) (interface{}, error) {
	if converter, exists := e.converters[field]; exists {
		return converter.Convert(value)
	}

	switch target.(type) {
	case *time.Duration:
		return (&DurationConverter{}).Convert(value)
	case *bool:
		return (&BoolConverter{}).Convert(value)
	case *int:
		return (&IntConverter{}).Convert(value)
	case *uint16:
		n, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, err
		}
		return uint16(n), nil
	case *float64:
		return strconv.ParseFloat(value, 64)
	case *[]string:
		return (&StringSliceConverter{}).Convert(value)
	default:
		return value, nil
	}
}

func setFieldValue(target interface{}, value interface{}) error {
	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Ptr {
		return fmt.Errorf("target must be a pointer")
	}

	targetValue = targetValue.Elem()
	if !targetValue.CanSet() {
		return fmt.Errorf("cannot set field value")
	}

	valueType := reflect.ValueOf(value)
	if !valueType.Type().ConvertibleTo(targetValue.Type()) {
		return fmt.Errorf("cannot convert %v to %v", valueType.Type(), targetValue.Type())
	}

	targetValue.Set(valueType.Convert(targetValue.Type()))
	return nil
}

// BoolConverter converts boolean words.
type BoolConverter struct{}

func (c *BoolConverter) Convert(value string) (interface{}, error) {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on", "enabled":
		return true, nil
	case "false", "0", "no", "off", "disabled":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", value)
	}
}

// DurationConverter accepts Go durations.
type DurationConverter struct{}

func (c *DurationConverter) Convert(value string) (interface{}, error) {
	return time.ParseDuration(value)
}

// IntConverter converts decimal integers.
type IntConverter struct{}

func (c *IntConverter) Convert(value string) (interface{}, error) {
	return strconv.Atoi(value)
}

// StringSliceConverter splits on Separator, comma by default.
type StringSliceConverter struct {
	Separator string
}

func (c *StringSliceConverter) Convert(value string) (interface{}, error) {
	separator := c.Separator
	if separator == "" {
		separator = ","
	}
	if value == "" {
		return []string{}, nil
	}
	parts := strings.Split(value, separator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}
