package jsoncompat

// Decoder is the subset of a streaming json decoder used by the handlers.
type Decoder interface {
	Decode(v any) error
}

// Encoder is the subset of a streaming json encoder used by the handlers.
type Encoder interface {
	Encode(v any) error
}
