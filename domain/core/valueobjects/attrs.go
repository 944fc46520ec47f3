package valueobjects

// Attrs is an open mapping of attribute names to typed values
type Attrs map[string]Value

// Get returns the value stored under key
func (a Attrs) Get(key string) (Value, bool) {
	v, ok := a[key]
	return v, ok
}

// String returns the string stored under key, if any
func (a Attrs) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Clone returns a deep copy. A nil receiver clones to an empty map.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v.Clone()
	}
	return out
}

// Equal compares two attribute sets; nil and empty are equal
func (a Attrs) Equal(o Attrs) bool {
	if len(a) != len(o) {
		return false
	}
	for k, v := range a {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// WithoutNulls returns a copy with every null entry removed
func (a Attrs) WithoutNulls() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		if v.IsNull() {
			continue
		}
		out[k] = v.Clone()
	}
	return out
}

// Merge returns a copy of a with patch applied on top: a null value deletes
// the key, anything else overwrites or adds it.
func (a Attrs) Merge(patch Attrs) Attrs {
	out := a.Clone()
	for k, v := range patch {
		if v.IsNull() {
			delete(out, k)
			continue
		}
		out[k] = v.Clone()
	}
	return out
}

// AttrsFromMap converts decoded JSON/YAML data into Attrs
func AttrsFromMap(m map[string]interface{}) (Attrs, error) {
	out := make(Attrs, len(m))
	for k, raw := range m {
		v, err := FromInterface(raw)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
