// Package model defines the building-model types that sleeve reads and
// the value types that flow through penetration discovery: segments,
// surface references, ray hits, and the documents that own elements.
//
// Everything in this package is a plain value. Documents are populated
// once by the engine and treated as read-only afterwards.
package model
