package odm

// Kind identifies the declared value type of a field descriptor.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindObjectID
	KindUUID
	KindArray
	KindDocument
)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindTime:     "time",
	KindObjectID: "objectId",
	KindUUID:     "uuid",
	KindArray:    "array",
	KindDocument: "document",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// UnknownPolicy controls how wire-document keys that are not declared on the
// schema are handled during decoding.
type UnknownPolicy int

const (
	UnknownIgnore UnknownPolicy = iota // Drop unknown keys (default; tolerates schema evolution).
	UnknownStrict                      // Reject unknown keys with an error.
)

// DecodeOpt bundles deserialization options.
type DecodeOpt struct {
	Unknown UnknownPolicy
}
