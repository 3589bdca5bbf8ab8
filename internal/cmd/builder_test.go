package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

// simpleRunnable implements only the Runnable interface
type simpleRunnable struct {
	StringField string `name:"string-flag" short:"s" usage:"a string flag" default:"default-value"`
}

func (s *simpleRunnable) Run(_ *cobra.Command, _ []string) error {
	return nil
}

// fullRunnable implements all interfaces
type fullRunnable struct {
	StringField    string            `name:"string-flag" short:"s" usage:"a string flag" default:"default-value"`
	IntField       int               `name:"int-flag" short:"i" usage:"an int flag" default:"42"`
	BoolField      bool              `name:"bool-flag" short:"b" usage:"a bool flag" default:"true"`
	BoolFieldFalse bool              `name:"bool-flag-false" usage:"a bool flag with false default" default:"false"`
	SliceField     []string          `name:"slice-flag" usage:"a slice flag"`
	MapField       map[string]string `name:"map-flag" short:"m" usage:"a map flag"`
	EnvField       string            `name:"env-flag" usage:"an env flag" env:"TEST_ENV_VAR"`
}

func (f *fullRunnable) Run(_ *cobra.Command, _ []string) error {
	return nil
}

func (f *fullRunnable) PersistentPre(_ *cobra.Command, _ []string) error {
	return nil
}

func (f *fullRunnable) Pre(_ *cobra.Command, _ []string) error {
	return nil
}

// EmbeddedBase is exported for testing embedded struct support
type EmbeddedBase struct {
	BaseField string `name:"base-field" usage:"a base field"`
}

type embeddedRunnable struct {
	EmbeddedBase
	OwnField string `name:"own-field" usage:"own field"`
}

func (e *embeddedRunnable) Run(_ *cobra.Command, _ []string) error {
	return nil
}

// CamelCaseCommand tests camelCase to kebab-case conversion
type CamelCaseCommand struct{}

func (c *CamelCaseCommand) Run(_ *cobra.Command, _ []string) error {
	return nil
}

func TestCommand_DefaultUseName(t *testing.T) {
	obj := &simpleRunnable{}
	cmd := Command(obj, cobra.Command{})

	if cmd.Use != "simple-runnable" {
		t.Errorf("expected Use to be 'simple-runnable', got '%s'", cmd.Use)
	}
}

func TestCommand_CustomUseName(t *testing.T) {
	obj := &simpleRunnable{}
	cmd := Command(obj, cobra.Command{Use: "custom-name"})

	if cmd.Use != "custom-name" {
		t.Errorf("expected Use to be 'custom-name', got '%s'", cmd.Use)
	}
}

func TestCommand_StringFlag(t *testing.T) {
	obj := &simpleRunnable{}
	cmd := Command(obj, cobra.Command{})

	flag := cmd.PersistentFlags().Lookup("string-flag")
	if flag == nil {
		t.Fatal("expected 'string-flag' flag to exist")
	}
	if flag.Shorthand != "s" {
		t.Errorf("expected shorthand to be 's', got '%s'", flag.Shorthand)
	}
	if flag.Usage != "a string flag" {
		t.Errorf("expected usage to be 'a string flag', got '%s'", flag.Usage)
	}
	if flag.DefValue != "default-value" {
		t.Errorf("expected default value to be 'default-value', got '%s'", flag.DefValue)
	}
}

func TestCommand_IntFlag(t *testing.T) {
	obj := &fullRunnable{}
	cmd := Command(obj, cobra.Command{})

	flag := cmd.PersistentFlags().Lookup("int-flag")
	if flag == nil {
		t.Fatal("expected 'int-flag' flag to exist")
	}
	if flag.DefValue != "42" {
		t.Errorf("expected default value to be '42', got '%s'", flag.DefValue)
	}
}

func TestCommand_BoolFlag(t *testing.T) {
	obj := &fullRunnable{}
	cmd := Command(obj, cobra.Command{})

	tests := []struct {
		name     string
		flagName string
		defValue string
	}{
		{"true default", "bool-flag", "true"},
		{"false default", "bool-flag-false", "false"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			flag := cmd.PersistentFlags().Lookup(tc.flagName)
			if flag == nil {
				t.Fatalf("expected '%s' flag to exist", tc.flagName)
			}
			if flag.DefValue != tc.defValue {
				t.Errorf("expected default value to be '%s', got '%s'", tc.defValue, flag.DefValue)
			}
		})
	}
}

func TestCommand_PreRunnables(t *testing.T) {
	obj := &fullRunnable{}
	cmd := Command(obj, cobra.Command{})

	if cmd.PersistentPreRunE == nil {
		t.Error("expected PersistentPreRunE to be set")
	}
	if cmd.PreRunE == nil {
		t.Error("expected PreRunE to be set")
	}
	if cmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestCommand_EmbeddedStruct(t *testing.T) {
	obj := &embeddedRunnable{}
	cmd := Command(obj, cobra.Command{})

	if cmd.PersistentFlags().Lookup("base-field") == nil {
		t.Fatal("expected 'base-field' flag from embedded struct to exist")
	}
	if cmd.PersistentFlags().Lookup("own-field") == nil {
		t.Fatal("expected 'own-field' flag to exist")
	}
}

func TestCommand_EnvironmentVariable(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "env-value")

	obj := &fullRunnable{}
	cmd := Command(obj, cobra.Command{})

	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flag := cmd.PersistentFlags().Lookup("env-flag")
	if flag == nil {
		t.Fatal("expected 'env-flag' flag to exist")
	}
	if flag.Value.String() != "env-value" {
		t.Errorf("expected flag value to be 'env-value', got '%s'", flag.Value.String())
	}
}

func TestCommand_EnvironmentVariableNotOverrideUserValue(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "env-value")

	obj := &fullRunnable{}
	cmd := Command(obj, cobra.Command{})

	cmd.SetArgs([]string{"--env-flag=user-value"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flag := cmd.PersistentFlags().Lookup("env-flag")
	if flag.Value.String() != "user-value" {
		t.Errorf("expected flag value to be 'user-value', got '%s'", flag.Value.String())
	}
}

func TestCommand_NameConversion(t *testing.T) {
	obj := &CamelCaseCommand{}
	cmd := Command(obj, cobra.Command{})

	if cmd.Use != "camel-case" {
		t.Errorf("expected Use to be 'camel-case', got '%s'", cmd.Use)
	}
}

func TestCommand_SliceFieldBinding(t *testing.T) {
	obj := &fullRunnable{}
	cmd := Command(obj, cobra.Command{})

	cmd.SetArgs([]string{"--slice-flag=value1,value2"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(obj.SliceField) != 2 {
		t.Fatalf("expected SliceField to have 2 elements, got %d", len(obj.SliceField))
	}
	if obj.SliceField[0] != "value1" || obj.SliceField[1] != "value2" {
		t.Errorf("unexpected SliceField values: %v", obj.SliceField)
	}
}

func TestCommand_MapFieldBinding(t *testing.T) {
	obj := &fullRunnable{}
	cmd := Command(obj, cobra.Command{})

	cmd.SetArgs([]string{"--map-flag=key1=value1", "--map-flag=key2"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(obj.MapField) != 2 {
		t.Fatalf("expected MapField to have 2 elements, got %d", len(obj.MapField))
	}
	if obj.MapField["key1"] != "value1" {
		t.Errorf("unexpected MapField values: %v", obj.MapField)
	}
	if obj.MapField["key2"] != "" {
		t.Errorf("expected MapField['key2'] to be empty, got '%s'", obj.MapField["key2"])
	}
}

func TestCommand_FieldBinding(t *testing.T) {
	obj := &fullRunnable{}
	cmd := Command(obj, cobra.Command{})

	cmd.SetArgs([]string{"--string-flag=custom-value", "--int-flag=100", "--bool-flag=false"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if obj.StringField != "custom-value" {
		t.Errorf("expected StringField to be 'custom-value', got '%s'", obj.StringField)
	}
	if obj.IntField != 100 {
		t.Errorf("expected IntField to be 100, got %d", obj.IntField)
	}
	if obj.BoolField {
		t.Error("expected BoolField to be false")
	}
}

// unsupportedFieldRunnable has an unsupported field type (float64)
type unsupportedFieldRunnable struct {
	UnsupportedField float64 `name:"unsupported" usage:"this should panic"`
}

func (u *unsupportedFieldRunnable) Run(_ *cobra.Command, _ []string) error {
	return nil
}

func TestCommand_UnsupportedFieldTypePanics(t *testing.T) {
	obj := &unsupportedFieldRunnable{}

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unsupported field type")
		}
	}()

	Command(obj, cobra.Command{})
}

func TestCommand_FieldWithoutTags(t *testing.T) {
	obj := &struct {
		simpleRunnable
		FieldWithoutTags string
	}{}
	cmd := Command(obj, cobra.Command{})

	if cmd.PersistentFlags().Lookup("field-without-tags") == nil {
		t.Fatal("expected 'field-without-tags' flag to exist")
	}
}
