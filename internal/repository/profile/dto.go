package profile

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
)

func profileToHash(p domprofile.Profile) map[string]string {
	return map[string]string{
		"user_id":      p.ID(),
		"summary":      p.Summary(),
		"display_name": p.DisplayName(),
		"flagged":      strconv.FormatBool(p.Flagged()),
	}
}

func profileFromHash(userID string, m map[string]string) domprofile.Profile {
	flagged, _ := strconv.ParseBool(m["flagged"])
	return domprofile.Reconstruct(userID, m["summary"], m["display_name"], flagged)
}

// embeddingToHash converts an Embedding into the flat hash the FT index covers.
func embeddingToHash(e domprofile.Embedding) map[string]string {
	return map[string]string{
		"user_id": e.UserID(),
		"labels":  strings.Join(e.Labels(), ","),
		"vector":  vectorToBytes(e.Vector()),
	}
}

func embeddingFromHash(contextName, fallbackID string, m map[string]string) domprofile.Embedding {
	userID := m["user_id"]
	if userID == "" {
		userID = fallbackID
	}
	var labels []string
	if raw := m["labels"]; raw != "" {
		labels = strings.Split(raw, ",")
	}
	return domprofile.ReconstructEmbedding(userID, contextName, bytesToVector(m["vector"]), labels)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
