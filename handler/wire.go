package handler

import (
	"github.com/rs/xid"

	"github.com/jacentio/changeset/internal/keygen"
	"github.com/jacentio/changeset/save"
)

// wireResult returns a copy of res whose key values are in their JSON wire
// form: binary ids become 24-character hex strings.
func wireResult(res *save.Result) *save.Result {
	out := &save.Result{
		InsertedKeys:  wireKeys(res.InsertedKeys),
		UpdatedKeys:   wireKeys(res.UpdatedKeys),
		DeletedKeys:   wireKeys(res.DeletedKeys),
		KeyMappings:   make([]save.KeyMapping, len(res.KeyMappings)),
		ServerCreated: make([]*save.Entity, len(res.ServerCreated)),
		Errors:        make([]save.ErrorEntry, len(res.Errors)),
	}
	for i, m := range res.KeyMappings {
		out.KeyMappings[i] = save.KeyMapping{
			TypeName:  m.TypeName,
			TempValue: wireValue(m.TempValue),
			RealValue: wireValue(m.RealValue),
		}
	}
	for i, e := range res.ServerCreated {
		fields := make(map[string]any, len(e.Fields))
		for k, v := range e.Fields {
			fields[k] = wireValue(v)
		}
		out.ServerCreated[i] = &save.Entity{Fields: fields, Aspect: e.Aspect}
	}
	for i, e := range res.Errors {
		e.Key = wireValue(e.Key)
		out.Errors[i] = e
	}
	return out
}

func wireKeys(keys []save.EntityKey) []save.EntityKey {
	out := make([]save.EntityKey, len(keys))
	for i, k := range keys {
		out[i] = save.EntityKey{TypeName: k.TypeName, Key: wireValue(k.Key)}
	}
	return out
}

func wireValue(v any) any {
	if id, ok := v.(xid.ID); ok {
		return keygen.FormatBinaryID(id)
	}
	return v
}
