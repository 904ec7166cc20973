// Package config loads ffpipe settings from CLI flags, FFPIPE_* environment
// variables and a TOML file, and watches the file for engine changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/ffpipe/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "FFPIPE_"

var durationType = reflect.TypeOf(time.Duration(0))

// errType reports a TOML value of the wrong type for its field.
var errType = errors.New("wrong type")

// LoadConfig fills opts, a pointer to a flat struct, from its sources in
// order of precedence: flags set on cmd, FFPIPE_ env vars, then the TOML
// file named by the Config field. Fields declare their sources with
// `toml:"section.key"` and `env:"KEY"` tags; fields without a source keep
// their value. A TOML syntax error aborts; bad individual values are joined
// into the returned error and the rest are still applied.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	file, err := readTOML(configPath(v))
	if err != nil {
		return err
	}
	fromCLI := changedFlags(cmd)

	var errs []error
	for i := range t.NumField() {
		sf := t.Field(i)
		if fromCLI[fieldNameToFlag(sf.Name)] {
			continue
		}
		field := v.Field(i)

		if key := sf.Tag.Get("env"); key != "" {
			if raw, ok := os.LookupEnv(EnvPrefix + key); ok && raw != "" {
				if err := setFieldValueFromString(field, raw); err != nil {
					errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				}
				continue
			}
		}
		if path := sf.Tag.Get("toml"); path != "" {
			if value := getNestedValue(file, path); value != nil {
				if err := setFieldValue(field, value); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// configPath returns the Config field of opts, if any.
func configPath(v reflect.Value) string {
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return ""
}

// readTOML parses path into a generic map. A missing file yields nil.
func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil //nolint:nilerr // a missing config file means defaults
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return doc, nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

// fieldNameToFlag converts a struct field name to the flag name humacli
// derives from it: "LoggingLevel" -> "logging-level".
func fieldNameToFlag(fieldName string) string {
	var b strings.Builder
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue looks up a dotted path such as "logging.level".
func getNestedValue(data map[string]any, path string) any {
	section, key, nested := strings.Cut(path, ".")
	if !nested {
		return data[path]
	}
	next, ok := data[section].(map[string]any)
	if !ok {
		return nil
	}
	return getNestedValue(next, key)
}

// setFieldValue assigns a decoded TOML value. Durations accept strings
// ("5s") or integer seconds.
func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}
	mismatch := fmt.Errorf("%w: %T for %s", errType, value, field.Type())

	if field.Type() == durationType {
		switch v := value.(type) {
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		case int64:
			field.SetInt(v * int64(time.Second))
		default:
			return mismatch
		}
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return mismatch
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return mismatch
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, ok := value.(int64)
		if !ok {
			return mismatch
		}
		field.SetInt(i)
	case reflect.Float64:
		switch v := value.(type) {
		case float64:
			field.SetFloat(v)
		case int64:
			field.SetFloat(float64(v))
		default:
			return mismatch
		}
	case reflect.Slice:
		arr, ok := value.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return mismatch
		}
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return mismatch
			}
			out = append(out, s)
		}
		field.Set(reflect.ValueOf(out))
	default:
		return mismatch
	}
	return nil
}

// setFieldValueFromString parses an env var into field. String slices are
// comma separated.
func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("%w: %s", errType, field.Type())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("%w: %s", errType, field.Type())
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table for commands that do not go
// through LoadConfig. level and format are global, buffer_size sizes the
// ring buffer and every other string key is a module level. Defaults are
// returned when the file is missing or invalid.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	doc, err := readTOML(configPath)
	if err != nil {
		return cfg
	}
	table, _ := doc["logging"].(map[string]any)
	for key, raw := range table {
		switch value := raw.(type) {
		case int64:
			if key == "buffer_size" {
				cfg.BufferSize = int(value)
			}
		case string:
			switch key {
			case "level":
				cfg.Level = value
			case "format":
				cfg.Format = value
			default:
				cfg.Modules[key] = value
			}
		}
	}
	return cfg
}
