// Package encoder contains the reversible text encodings used for opaque
// pagination cursors.
package encoder

type Encoder interface {
	Decode(string) ([]byte, error)
	Encode([]byte) (string, error)
}
