// internal/models/extra.go
package models

import (
	"encoding/json"
	"maps"
	"reflect"
	"strings"
)

// Extra holds JSON members a stored record carried that these types do not
// model. They are written back unchanged, so fields added by other writers
// survive a read-modify-write cycle.
type Extra map[string]json.RawMessage

// jsonFields lists the member names t encodes, from its json tags.
func jsonFields(t reflect.Type) map[string]struct{} {
	out := make(map[string]struct{}, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = struct{}{}
	}
	return out
}

// splitExtra returns the members of the object in data that are not in known.
// The result is nil when there are none.
func splitExtra(data []byte, known map[string]struct{}) (Extra, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra Extra
	for name, raw := range all {
		if _, ok := known[name]; ok {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[name] = raw
	}
	return extra, nil
}

// mergeExtra adds extra to the encoded object in data. Modelled members win.
func mergeExtra(data []byte, extra Extra) ([]byte, error) {
	if len(extra) == 0 {
		return data, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for name, raw := range extra {
		if _, ok := all[name]; !ok {
			all[name] = raw
		}
	}
	return json.Marshal(all)
}

// Clone copies the map; the raw values are never mutated in place.
func (e Extra) Clone() Extra {
	return maps.Clone(e)
}
