package storage

import (
	"fmt"

	"guild-economy/internal/docpath"
)

// CheckShape reports the first guild key whose record is not an object.
// Deeper levels are free-form: member records and settings are addressed by
// arbitrary paths and only interpreted by the domain managers.
func CheckShape(doc docpath.Document) (string, error) {
	for guildID, raw := range doc {
		if _, ok := docpath.AsObject(raw); !ok {
			return guildID, fmt.Errorf("guild record is %s, want object", docpath.TypeName(raw))
		}
	}
	return "", nil
}
