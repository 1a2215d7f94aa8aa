package store

import (
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// encodeProvenance flattens prov into the columns stored per record.
func encodeProvenance(prov types.Provenance) (kind, path string, payload []byte, err error) {
	switch prov.(type) {
	case types.FileProvenance, types.StreamProvenance, types.GitProvenance,
		types.ArchiveProvenance, types.ObjectProvenance, types.ExtendedProvenance:
	default:
		return "", "", nil, fmt.Errorf("unknown provenance type: %T", prov)
	}
	payload, err = json.Marshal(prov)
	if err != nil {
		return "", "", nil, fmt.Errorf("marshaling provenance: %w", err)
	}
	return prov.Kind(), prov.Path(), payload, nil
}

// decodeProvenance restores a provenance value from its kind and payload.
func decodeProvenance(kind string, payload []byte) (types.Provenance, error) {
	var (
		prov types.Provenance
		err  error
	)
	switch kind {
	case "file":
		var p types.FileProvenance
		err = json.Unmarshal(payload, &p)
		prov = p
	case "stream":
		var p types.StreamProvenance
		err = json.Unmarshal(payload, &p)
		prov = p
	case "git":
		var p types.GitProvenance
		err = json.Unmarshal(payload, &p)
		prov = p
	case "archive":
		var p types.ArchiveProvenance
		err = json.Unmarshal(payload, &p)
		prov = p
	case "object":
		var p types.ObjectProvenance
		err = json.Unmarshal(payload, &p)
		prov = p
	case "extended":
		var p types.ExtendedProvenance
		err = json.Unmarshal(payload, &p)
		prov = p
	default:
		return nil, fmt.Errorf("unknown provenance kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshaling %s provenance: %w", kind, err)
	}
	return prov, nil
}
