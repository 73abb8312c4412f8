// Package swift models the Swift side of an export: interned type shapes,
// rendering to source spelling, and identifier rules.
//
// Types are interned per module. Nominal references keep the source
// declaration identity and get their Swift spelling only at render time,
// after names have been bound.
package swift
