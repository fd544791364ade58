package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Alia5/jctool/internal/configpaths"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file holding the flag defaults of
// one command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"serve,spi,ir,info"`
	Format  string `help:"Output format" enum:"json,yaml,yml,toml" default:"yaml"`
	Output  string `help:"Destination file path (defaults to <command>.<ext> in the current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

var ErrConfigExists = errors.New("destination exists; use --force to overwrite")

var configTemplates = map[string]reflect.Type{
	"serve": reflect.TypeOf(Serve{}),
	"spi":   reflect.TypeOf(SPIFlags{}),
	"ir":    reflect.TypeOf(IRBuild{}),
	"info":  reflect.TypeOf(InfoCmd{}),
}

func (c *ConfigInit) Run(out *Output) error {
	t, ok := configTemplates[c.Command]
	if !ok {
		return fmt.Errorf("unknown command %q", c.Command)
	}
	data, err := RenderTemplate(t, c.Format)
	if err != nil {
		return err
	}

	dest := c.Output
	if dest == "" {
		dest = c.Command + "." + configpaths.Ext(c.Format)
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return ErrConfigExists
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, "wrote", dest)
	return err
}

// RenderTemplate encodes the defaults of a command struct. Keys are nested
// by flag prefix and use the snake_case form the kong loaders resolve.
func RenderTemplate(t reflect.Type, format string) ([]byte, error) {
	root := templateMap(t)
	switch configpaths.Ext(format) {
	case "yaml":
		return yaml.Marshal(root)
	case "toml":
		return toml.Marshal(root)
	default:
		return json.MarshalIndent(root, "", "  ")
	}
}

func templateMap(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]any{}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("kong") == "-" {
			continue
		}
		if _, isArg := f.Tag.Lookup("arg"); isArg {
			continue
		}
		if _, isCmd := f.Tag.Lookup("cmd"); isCmd {
			continue
		}

		if _, ok := f.Tag.Lookup("embed"); ok {
			sub := templateMap(f.Type)
			name := snakeCase(strings.TrimSuffix(strings.ReplaceAll(f.Tag.Get("prefix"), "-", "_"), "."))
			if name == "" {
				for k, v := range sub {
					out[k] = v
				}
				continue
			}
			if existing, ok := out[name].(map[string]any); ok {
				for k, v := range sub {
					existing[k] = v
				}
				continue
			}
			out[name] = sub
			continue
		}

		key := f.Tag.Get("name")
		if key == "" {
			key = snakeCase(f.Name)
		}
		key = strings.ReplaceAll(key, "-", "_")
		if v := defaultValue(f.Type, f.Tag.Get("default")); v != nil {
			out[key] = v
		}
	}
	return out
}

var durationType = reflect.TypeOf(time.Duration(0))

func defaultValue(t reflect.Type, def string) any {
	if t == durationType {
		if def == "" {
			return "0s"
		}
		return def
	}
	switch t.Kind() {
	case reflect.String:
		if def == "" {
			return nil
		}
		return def
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 0, 64)
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, _ := strconv.ParseUint(def, 0, 64)
		return n
	case reflect.Float32, reflect.Float64:
		f, _ := strconv.ParseFloat(def, 64)
		return f
	default:
		return nil
	}
}

// snakeCase turns ChunkSize into chunk_size and ExposureUs into exposure_us.
func snakeCase(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i, c := range r {
		if unicode.IsUpper(c) {
			prevLower := i > 0 && unicode.IsLower(r[i-1])
			nextLower := i > 0 && i+1 < len(r) && unicode.IsUpper(r[i-1]) && unicode.IsLower(r[i+1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			c = unicode.ToLower(c)
		}
		b.WriteRune(c)
	}
	return b.String()
}

// decodeFile unmarshals a json, yaml or toml file into v, picking the format
// from the extension. Keys absent from the file leave v unchanged.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	case ".toml":
		err = toml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
