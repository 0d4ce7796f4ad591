package save

import "github.com/jacentio/changeset/store"

// resolveFixups rewrites foreign-key values that equal a known placeholder
// to the placeholder's real key and returns the number of rewrites.
//
// Resolution is a single pass: a real key is never itself looked up again.
// Values without a matching placeholder were already real and stay as they
// are, unless they failed conversion, in which case their validation error
// is returned.
func resolveFixups(fixups []pendingFixup, mappings []KeyMapping) (int, error) {
	byTemp := make(map[string]KeyMapping, len(mappings))
	for _, m := range mappings {
		k := store.KeyString(m.TempValue)
		if _, exists := byTemp[k]; !exists {
			byTemp[k] = m
		}
	}

	n := 0
	for _, f := range fixups {
		if f.doc.Op == OpDelete {
			continue
		}
		m, ok := byTemp[store.KeyString(f.value)]
		if !ok {
			if f.invalid != nil {
				return n, f.invalid
			}
			continue
		}
		f.doc.set(f.field, m.RealValue)
		n++
	}
	return n, nil
}
