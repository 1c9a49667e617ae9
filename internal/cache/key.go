package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"madspark/internal/types"
)

// KeyLength is the truncated hexdigest length.
const KeyLength = 16

// KeyInputs is everything that identifies a structured generation. Two
// requests differing in any field produce different keys.
type KeyInputs struct {
	Prompt            string
	SchemaID          string
	Temperature       float64
	ForcedProvider    string
	SystemInstruction string
	Files             []string          // local paths; content-hashed
	URLs              []string          // sorted before hashing
	Extra             map[string]string // any additional keyword inputs
}

// canonicalKey is the serialized form that gets hashed. Field order is fixed
// by the struct; slices and maps are sorted before marshaling.
type canonicalKey struct {
	Prompt            string      `json:"prompt"`
	SchemaID          string      `json:"schema_id"`
	Temperature       float64     `json:"temperature"`
	ForcedProvider    string      `json:"forced_provider"`
	SystemInstruction string      `json:"system_instruction"`
	Files             [][2]string `json:"files"` // (path, content sha256) pairs
	URLs              []string    `json:"urls"`
	Extra             [][2]string `json:"extra"`
}

// Key computes the 16-hex-char cache key for the inputs. Referenced files
// are content-hashed; files over 50 MB fail with FileTooLargeError.
func Key(in KeyInputs) (string, error) {
	ck := canonicalKey{
		Prompt:            in.Prompt,
		SchemaID:          in.SchemaID,
		Temperature:       in.Temperature,
		ForcedProvider:    in.ForcedProvider,
		SystemInstruction: in.SystemInstruction,
	}

	for _, path := range in.Files {
		digest, err := hashFile(path)
		if err != nil {
			return "", err
		}
		ck.Files = append(ck.Files, [2]string{path, digest})
	}
	sort.Slice(ck.Files, func(i, j int) bool { return ck.Files[i][0] < ck.Files[j][0] })

	ck.URLs = append(ck.URLs, in.URLs...)
	sort.Strings(ck.URLs)

	for k, v := range in.Extra {
		ck.Extra = append(ck.Extra, [2]string{k, v})
	}
	sort.Slice(ck.Extra, func(i, j int) bool { return ck.Extra[i][0] < ck.Extra[j][0] })

	data, err := json.Marshal(ck)
	if err != nil {
		return "", fmt.Errorf("failed to serialize cache key inputs: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:KeyLength], nil
}

// hashFile returns the sha256 hexdigest of a file's content, rejecting
// files larger than 50 MB.
func hashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if info.Size() > types.MaxHashFileBytes {
		return "", &types.FileTooLargeError{Path: path, Size: info.Size()}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cannot hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
