// Package feeders load application properties from files, the environment
// and the command line into a flat map of dotted keys such as
// "logger.level".
package feeders

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Feeder adds the properties of one source to props. Keys it sets replace
// those already present.
type Feeder interface {
	Feed(props map[string]string) error
}

// FeederFunc adapts a function to a Feeder.
type FeederFunc func(props map[string]string) error

func (f FeederFunc) Feed(props map[string]string) error { return f(props) }

// Properties is a static Feeder.
type Properties map[string]string

func (p Properties) Feed(props map[string]string) error {
	for k, v := range p {
		props[k] = v
	}
	return nil
}

// FeedAll applies feeders in order, so later sources win.
func FeedAll(props map[string]string, feeders ...Feeder) error {
	for _, f := range feeders {
		if f == nil {
			continue
		}
		if err := f.Feed(props); err != nil {
			return err
		}
	}
	return nil
}

// debugLogger is the subset of the launcher logger used for verbose feeding.
type debugLogger interface {
	Debug(msg string, args ...any)
}

// flatten writes nested document values to props with dotted keys. Lists are
// joined with commas.
func flatten(prefix string, value any, props map[string]string) error {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if err := flatten(join(prefix, k), child, props); err != nil {
				return err
			}
		}
	case map[any]any:
		for k, child := range v {
			if err := flatten(join(prefix, fmt.Sprint(k)), child, props); err != nil {
				return err
			}
		}
	case []any:
		parts := make([]string, 0, len(v))
		for i, item := range v {
			s, err := scalar(item)
			if err != nil {
				return fmt.Errorf("%w: %s[%d]", ErrNestedList, prefix, i)
			}
			parts = append(parts, s)
		}
		props[prefix] = strings.Join(parts, ",")
	default:
		s, err := scalar(v)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnsupportedValue, prefix)
		}
		props[prefix] = s
	}
	return nil
}

func scalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case map[string]any, map[any]any, []any, []map[string]any:
		return "", ErrNestedList
	}
	return fmt.Sprint(v), nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Keys returns the keys of props in order.
func Keys(props map[string]string) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
