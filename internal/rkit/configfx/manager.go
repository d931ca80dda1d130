package configfx

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var (
	ErrNotStruct                  = errors.New("not a struct")
	ErrMissingRequiredConfigValue = errors.New("missing required config value")
)

type ConfigManager struct{}

var _ ConfigLoader = (*ConfigManager)(nil)

func NewConfigManager() *ConfigManager {
	return &ConfigManager{}
}

func (cl *ConfigManager) LoadMeta(i any) (ConfigItemMeta, error) {
	r := reflect.ValueOf(i).Elem() //nolint:varnamelen

	children, err := reflectMeta(r)
	if err != nil {
		return ConfigItemMeta{}, err //nolint:exhaustruct
	}

	return ConfigItemMeta{ //nolint:exhaustruct
		Name:     "root",
		Field:    r,
		Children: children,
	}, nil
}

func (cl *ConfigManager) LoadMap(resources ...ConfigResource) (*map[string]any, error) {
	target := make(map[string]any)

	for _, resource := range resources {
		if err := resource(&target); err != nil {
			return nil, err
		}
	}

	return &target, nil
}

func (cl *ConfigManager) Load(i any, resources ...ConfigResource) error {
	meta, err := cl.LoadMeta(i)
	if err != nil {
		return err
	}

	target, err := cl.LoadMap(resources...)
	if err != nil {
		return err
	}

	return reflectSet(meta, "", target)
}

// LoadDefaults populates i from struct defaults and the process
// environment (REDLITE_-prefixed), the only two sources this server's
// CLI launcher needs (spec's AMBIENT STACK configuration section).
func (cl *ConfigManager) LoadDefaults(i any) error {
	return cl.Load(i, cl.FromSystemEnv(true))
}

func reflectMeta(r reflect.Value) ([]ConfigItemMeta, error) { //nolint:varnamelen
	result := make([]ConfigItemMeta, 0)

	if r.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w (type=%s)", ErrNotStruct, r.Type().String())
	}

	for i := range r.NumField() {
		structField := r.Field(i)
		structFieldType := r.Type().Field(i)

		if structFieldType.Anonymous {
			children, err := reflectMeta(structField)
			if err != nil {
				return nil, err
			}

			result = append(result, children...)

			continue
		}

		tag, hasTag := structFieldType.Tag.Lookup(TagConf)
		if !hasTag {
			continue
		}

		_, isRequired := structFieldType.Tag.Lookup(TagRequired)
		defaultValue, hasDefaultValue := structFieldType.Tag.Lookup(TagDefault)

		var children []ConfigItemMeta

		if structFieldType.Type.Kind() == reflect.Struct {
			var err error

			children, err = reflectMeta(structField)
			if err != nil {
				return nil, err
			}
		}

		result = append(result, ConfigItemMeta{
			Name:            tag,
			Field:           structField,
			Type:            structFieldType.Type,
			IsRequired:      isRequired,
			HasDefaultValue: hasDefaultValue,
			DefaultValue:    defaultValue,

			Children: children,
		})
	}

	return result, nil
}

func reflectSet(meta ConfigItemMeta, prefix string, target *map[string]any) error { //nolint:cyclop
	for _, child := range meta.Children {
		key := prefix + child.Name

		if child.Type.Kind() == reflect.Struct {
			if err := reflectSet(child, key+Separator, target); err != nil {
				return err
			}

			continue
		}

		value, valueOk := (*target)[key].(string)
		if !valueOk {
			if child.HasDefaultValue {
				reflectSetField(child.Field, child.Type, child.DefaultValue)

				continue
			}

			if child.IsRequired {
				return fmt.Errorf("%w (key=%q, child_name=%q, child_type=%s)",
					ErrMissingRequiredConfigValue, key, child.Name, child.Type.String())
			}

			continue
		}

		reflectSetField(child.Field, child.Type, value)
	}

	return nil
}

func reflectSetField(field reflect.Value, fieldType reflect.Type, value string) { //nolint:cyclop,funlen
	var finalValue reflect.Value

	switch fieldType {
	case reflect.TypeFor[string]():
		finalValue = reflect.ValueOf(value)
	case reflect.TypeFor[int]():
		v, _ := strconv.Atoi(value)
		finalValue = reflect.ValueOf(v)
	case reflect.TypeFor[int64]():
		v, _ := strconv.ParseInt(value, 10, 64)
		finalValue = reflect.ValueOf(v)
	case reflect.TypeFor[uint]():
		v, _ := strconv.ParseUint(value, 10, 64)
		finalValue = reflect.ValueOf(uint(v))
	case reflect.TypeFor[uint64]():
		v, _ := strconv.ParseUint(value, 10, 64)
		finalValue = reflect.ValueOf(v)
	case reflect.TypeFor[float64]():
		v, _ := strconv.ParseFloat(value, 64)
		finalValue = reflect.ValueOf(v)
	case reflect.TypeFor[bool]():
		v, _ := strconv.ParseBool(value)
		finalValue = reflect.ValueOf(v)
	case reflect.TypeFor[time.Duration]():
		v, _ := time.ParseDuration(value)
		finalValue = reflect.ValueOf(v)
	default:
		return
	}

	field.Set(finalValue)
}
