// Package meshdb defines the mesh database consumed by the metrics engine
// and an in-memory implementation of it. Entities are opaque handles into
// arena tables owned by the store; entity sets form the volume -> surface
// hierarchy and carry the GEOM_DIMENSION, CATEGORY and GLOBAL_ID tags.
package meshdb
