package encoding

import "encoding/json"

// Serializable provides a clean, simple interface for serializing and deserializing values.
type Serializable[T any] interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}

// ToJSON marshals v with encoding/json.
func ToJSON[T any](v T) ([]byte, error) {
	return json.Marshal(v)
}

// FromJSON unmarshals raw into a fresh T.
func FromJSON[T any](raw []byte) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
