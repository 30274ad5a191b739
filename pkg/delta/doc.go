// Package delta encodes one record as a compact diff against another
// record of the same schema.
//
// Create compares two records leaf by leaf through their own Serialize
// methods and produces a Delta: a changed-field bitmask plus the new
// values of the changed fields. Apply replays a Delta onto a copy of the
// baseline. Neither step uses reflection; both depend only on the record
// visiting the same fields in the same order every time.
//
//	d, err := delta.Create(&prev, &cur)
//	...
//	next := prev
//	err = delta.Apply(d, &next) // next now equals cur
package delta
