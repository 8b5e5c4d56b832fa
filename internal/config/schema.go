package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// mapstructureDecode converts the generic map produced by viper +
// expandPass back into the typed Config, using mapstructure directly
// (viper normally does this via Unmarshal, but we need to operate on the
// already-mutated raw map rather than re-reading viper's internal tree).
func mapstructureDecode(raw map[string]interface{}, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Validate checks the schema invariants the proxy depends on: non-empty,
// unique provider ids, and that every router target names a provider that
// actually exists.
func Validate(c *Config) error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("providers must be non-empty")
	}

	ids := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider entry missing id")
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate provider id %q", p.ID)
		}
		ids[p.ID] = true
	}

	checkTarget := func(field, value string) error {
		if value == "" {
			return nil
		}
		if !ids[value] {
			return fmt.Errorf("router.%s references unknown provider %q", field, value)
		}
		return nil
	}
	if err := checkTarget("default", c.Router.Default); err != nil {
		return err
	}
	if err := checkTarget("think", c.Router.Think); err != nil {
		return err
	}
	if err := checkTarget("background", c.Router.Background); err != nil {
		return err
	}
	if err := checkTarget("longContext", c.Router.LongContext); err != nil {
		return err
	}
	if err := checkTarget("webSearch", c.Router.WebSearch); err != nil {
		return err
	}
	if err := checkTarget("image", c.Router.Image); err != nil {
		return err
	}

	for _, t := range c.Transformers {
		if t.Provider != "" && !ids[t.Provider] {
			return fmt.Errorf("transformers[].provider references unknown provider %q", t.Provider)
		}
	}

	return nil
}
