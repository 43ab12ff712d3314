package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Key derives the stable cache key for a report execution from the report
// identity and its fully-resolved parameter set (the serialized plan,
// including any filters injected by scoping or the optimizer). Identical
// inputs always hash to the same key.
func Key(reportID uuid.UUID, params any) string {
	return hashHex(reportID.String(), params)
}

// ParameterHash fingerprints the parameter set alone.
func ParameterHash(params any) string {
	return hashHex("", params)
}

func hashHex(prefix string, params any) string {
	h := sha256.New()
	if prefix != "" {
		h.Write([]byte(prefix))
		h.Write([]byte{0})
	}

	// json.Marshal is deterministic for structs and sorts map keys, which
	// keeps the key stable across processes.
	encoded, err := json.Marshal(params)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%#v", params))
	}
	h.Write(encoded)

	return hex.EncodeToString(h.Sum(nil))
}
