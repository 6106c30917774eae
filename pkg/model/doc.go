// Package model defines the types shared by the form state engine: the field
// declarations of an array form (FormModel/Field), the records stored in the
// array (Record), the (record id, field name) pairs used as subscription and
// error keys (FieldPath), and the per-field state delivered to observers
// (FieldState). Record values are normalised to a small set of scalar kinds
// (string, float64, bool, nil) so snapshots stay comparable and validators
// see the same shapes regardless of how callers typed their inputs.
package model
