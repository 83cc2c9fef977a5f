//go:build !jsonstd

package jsoncompat

import (
	"io"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

// Marshal encodes v with sonic using standard library compatible settings.
func Marshal(v any) ([]byte, error) { return api.Marshal(v) }

// Unmarshal decodes data into v with sonic using standard library compatible settings.
func Unmarshal(data []byte, v any) error { return api.Unmarshal(data, v) }

// NewDecoder returns a streaming decoder reading from r.
func NewDecoder(r io.Reader) Decoder { return api.NewDecoder(r) }

// NewEncoder returns a streaming encoder writing to w.
func NewEncoder(w io.Writer) Encoder { return api.NewEncoder(w) }
