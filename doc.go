// Package odm maps statically declared document schemas onto MongoDB's
// dynamically typed wire documents. Applications declare fields with typed
// descriptors, register them as schemas, and work with validated document
// instances; serialization, deserialization and query building all go
// through the descriptors so that type errors surface before any I/O.
//
// A minimal flow:
//
//	user := odm.MustRegister("User",
//	    odm.Field("name", odm.String()).Required(),
//	    odm.Field("age", odm.Int()).Default(int64(0)),
//	)
//
//	doc := user.New()
//	_ = doc.Set("name", "Ann")
//	wire, err := odm.Encode(doc) // bson.D{{"_id"...}, {"name", "Ann"}, {"age", int64(0)}}
//
// The actual database I/O lives in the manager package; filters and updates
// are built in the query package from the same field descriptors.
package odm
