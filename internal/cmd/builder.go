// Package cmd builds cobra commands from struct tags: each field becomes a
// persistent flag, optionally backed by an environment variable.
package cmd

import (
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var caseRegexp = regexp.MustCompile("([a-z])([A-Z])")

type PersistentPreRunnable interface {
	PersistentPre(cmd *cobra.Command, args []string) error
}

type PreRunnable interface {
	Pre(cmd *cobra.Command, args []string) error
}

type Runnable interface {
	Run(cmd *cobra.Command, args []string) error
}

type fieldInfo struct {
	FieldType  reflect.StructField
	FieldValue reflect.Value
}

func fields(obj any) []fieldInfo {
	objValue := reflect.ValueOf(obj).Elem()

	var result []fieldInfo
	for i := 0; i < objValue.NumField(); i++ {
		fieldType := objValue.Type().Field(i)
		if fieldType.Anonymous && fieldType.Type.Kind() == reflect.Struct {
			result = append(result, fields(objValue.Field(i).Addr().Interface())...)
		} else if !fieldType.Anonymous {
			result = append(result, fieldInfo{
				FieldValue: objValue.Field(i),
				FieldType:  fieldType,
			})
		}
	}
	return result
}

// Name derives the command name from the struct type, so EngineCommand
// becomes "engine".
func Name(obj any) string {
	objValue := reflect.ValueOf(obj).Elem()
	commandName := strings.Replace(objValue.Type().Name(), "Command", "", 1)
	commandName, _ = flagName(commandName, "", "")
	return commandName
}

// Command populates a cobra.Command from the struct tags of obj. Supported
// tags: name, short, usage, env, default. The struct's Run method becomes
// RunE.
func Command(obj Runnable, cmd cobra.Command) *cobra.Command {
	var (
		envs   []func()
		slices = map[string]reflect.Value{}
		maps   = map[string]reflect.Value{}
	)

	c := cmd
	if c.Use == "" {
		c.Use = Name(obj)
	}

	for _, info := range fields(obj) {
		fieldType := info.FieldType
		v := info.FieldValue

		name, alias := flagName(fieldType.Name, fieldType.Tag.Get("name"), fieldType.Tag.Get("short"))
		usage := fieldType.Tag.Get("usage")
		defValue := fieldType.Tag.Get("default")

		flags := c.PersistentFlags()
		switch fieldType.Type.Kind() {
		case reflect.String:
			flags.StringVarP(v.Addr().Interface().(*string), name, alias, defValue, usage)
		case reflect.Int:
			defInt, _ := strconv.Atoi(defValue)
			flags.IntVarP(v.Addr().Interface().(*int), name, alias, defInt, usage)
		case reflect.Bool:
			flags.BoolVarP(v.Addr().Interface().(*bool), name, alias, defValue == "true", usage)
		case reflect.Slice:
			slices[name] = v
			flags.StringSliceP(name, alias, nil, usage)
		case reflect.Map:
			maps[name] = v
			flags.StringSliceP(name, alias, nil, usage)
		default:
			panic("unsupported flag field " + fieldType.Name)
		}

		for _, env := range strings.Split(fieldType.Tag.Get("env"), ",") {
			if env == "" {
				continue
			}
			env := env
			envs = append(envs, func() {
				value := os.Getenv(env)
				if value == "" {
					return
				}
				current, err := flags.GetString(name)
				if err == nil && (current == "" || current == defValue) {
					_ = flags.Set(name, value)
				}
			})
		}
	}

	if p, ok := obj.(PersistentPreRunnable); ok {
		c.PersistentPreRunE = p.PersistentPre
	}
	if p, ok := obj.(PreRunnable); ok {
		c.PreRunE = p.Pre
	}
	c.RunE = obj.Run

	c.PersistentPreRunE = bind(c.PersistentPreRunE, slices, maps, envs)
	c.PreRunE = bind(c.PreRunE, slices, maps, envs)
	c.RunE = bind(c.RunE, slices, maps, envs)

	return &c
}

func assignMaps(app *cobra.Command, maps map[string]reflect.Value) error {
	for k, v := range maps {
		s, err := app.Flags().GetStringSlice(k)
		if err != nil {
			return err
		}
		if s != nil {
			values := map[string]string{}
			for _, part := range s {
				key, value, _ := strings.Cut(part, "=")
				values[key] = value
			}
			v.Set(reflect.ValueOf(values))
		}
	}
	return nil
}

func assignSlices(app *cobra.Command, slices map[string]reflect.Value) error {
	for k, v := range slices {
		s, err := app.Flags().GetStringSlice(k)
		if err != nil {
			return err
		}
		if s != nil {
			v.Set(reflect.ValueOf(s))
		}
	}
	return nil
}

func flagName(name, setName, short string) (string, string) {
	if setName != "" {
		return setName, short
	}
	name = caseRegexp.ReplaceAllString(name, "$1-$2")
	return strings.ToLower(name), short
}

func bind(next func(*cobra.Command, []string) error,
	slices map[string]reflect.Value,
	maps map[string]reflect.Value,
	envs []func()) func(*cobra.Command, []string) error {
	if next == nil {
		return nil
	}
	return func(cmd *cobra.Command, args []string) error {
		for _, envCallback := range envs {
			envCallback()
		}
		if err := assignSlices(cmd, slices); err != nil {
			return err
		}
		if err := assignMaps(cmd, maps); err != nil {
			return err
		}
		return next(cmd, args)
	}
}
