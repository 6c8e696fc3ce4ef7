// Package pathtrans translates paths between the device-visible filesystem
// view and the service-local one. Translation is pure prefix substitution;
// it never touches the filesystem and never fails.
package pathtrans

import "strings"

// Pair configures one (devicePrefix, localPrefix) substitution rule.
type Pair struct {
	DevicePrefix string
	LocalPrefix  string
}

// Translator applies the first matching pair's substitution, or returns the
// path unchanged when no prefix matches.
type Translator struct {
	pairs []Pair
}

// New builds a Translator from the configured prefix pairs. Pairs are tried
// in order; the first match wins.
func New(pairs ...Pair) *Translator {
	return &Translator{pairs: pairs}
}

// ToLocal maps a device-visible path to a service-local path.
func (t *Translator) ToLocal(p string) string {
	for _, pair := range t.pairs {
		if pair.DevicePrefix == "" {
			continue
		}
		if strings.HasPrefix(p, pair.DevicePrefix) {
			return pair.LocalPrefix + strings.TrimPrefix(p, pair.DevicePrefix)
		}
	}
	return p
}

// ToClient maps a service-local path to a device-visible path.
func (t *Translator) ToClient(p string) string {
	for _, pair := range t.pairs {
		if pair.LocalPrefix == "" {
			continue
		}
		if strings.HasPrefix(p, pair.LocalPrefix) {
			return pair.DevicePrefix + strings.TrimPrefix(p, pair.LocalPrefix)
		}
	}
	return p
}
