package config

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Seed is a random seed.  Zero means a time based seed is chosen at start up.
type Seed int64

// RandomSeedKeyword may be given instead of a number to request a time based seed.
const RandomSeedKeyword = "random"

var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		SeedDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
		mapstructure.StringToSliceHookFunc(","),
	)),
}

func SeedDecodeHook() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != reflect.TypeOf(Seed(0)) {
			return data, nil
		}
		return ParseSeed(data.(string))
	}
}

func ParseSeed(s string) (Seed, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, RandomSeedKeyword) {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid seed %q: must be an integer or %q", s, RandomSeedKeyword)
	}
	return Seed(n), nil
}
