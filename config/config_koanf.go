package config

import (
	"encoding"
	"reflect"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// environment variables use "__" as section separator: DNSTESTBED_RESOLVER__CACHESIZE
const envSeparator = "__"

func loadEnvironment(k *koanf.Koanf) error {
	return k.Load(env.Provider(EnvConfigPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, EnvConfigPrefix)

		return strings.ReplaceAll(strings.ToLower(key), strings.ToLower(envSeparator), ".")
	}), nil)
}

// loadFile loads the YAML file with lower case keys, so environment variables override them
func loadFile(k *koanf.Koanf, path string) error {
	fk := koanf.New(".")

	if err := fk.Load(file.Provider(path), yaml.Parser()); err != nil {
		return err
	}

	flat := fk.All()
	lowered := make(map[string]interface{}, len(flat))

	for key, value := range flat {
		lowered[strings.ToLower(key)] = value
	}

	return k.Load(confmap.Provider(lowered, "."), nil)
}

func unmarshalKoanf(k *koanf.Koanf, cfg *Config) error {
	return k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "yaml",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       composeDecodeHookFunc(),
			Metadata:         nil,
			Result:           cfg,
			WeaklyTypedInput: true,
			MatchName:        strings.EqualFold,
		},
	})
}

func composeDecodeHookFunc() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		textUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// textUnmarshallerHookFunc decodes strings into every type implementing encoding.TextUnmarshaler
// (durations and enums)
func textUnmarshallerHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}

		result := reflect.New(t).Interface()

		unmarshaller, ok := result.(encoding.TextUnmarshaler)
		if !ok {
			return data, nil
		}

		if err := unmarshaller.UnmarshalText([]byte(data.(string))); err != nil {
			return nil, err
		}

		return reflect.ValueOf(result).Elem().Interface(), nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)

	return keys
}
