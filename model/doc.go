// Package model defines stable boundary types for API layers.
//
// Protocol identity (anchor records, receipts, checkpoints and their CIDs) is
// unaffected by any projection. These structs are the only types intended for
// direct JSON/YAML serialization by consumers.
package model
