package store

import (
	"database/sql"
	"encoding/json"
)

// JSON column helpers shared by the drivers. Nil slices map to NULL so a
// stored row omits absent optional fields and round-trips exactly.

// JSONStrings encodes a string slice for a nullable JSON text column.
func JSONStrings(v []string) interface{} {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// JSONInts encodes an int slice for a nullable JSON text column.
func JSONInts(v []int) interface{} {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// DecodeStrings parses a nullable JSON text column back into a slice.
func DecodeStrings(ns sql.NullString) []string {
	if !ns.Valid {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}

// DecodeInts parses a nullable JSON text column back into a slice.
func DecodeInts(ns sql.NullString) []int {
	if !ns.Valid {
		return nil
	}
	var out []int
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}
