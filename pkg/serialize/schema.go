package serialize

import "fmt"

// names is a visitor that records leaf names without moving any data.
// It runs in Capture mode so records never treat it as a decode pass.
type names struct {
	list []string
}

func (n *names) Mode() Mode { return Capture }

func (n *names) Visit(name string, _ Field) error {
	n.list = append(n.list, name)
	return nil
}

// Fields returns the names of r's leaf fields in schema order.
func Fields(r Record) ([]string, error) {
	n := &names{}
	s := Adapt(n)
	if !r.Serialize(s) {
		return nil, Failure(s)
	}
	return n.list, nil
}

// FieldCount returns the number of leaf fields r exposes.
func FieldCount(r Record) (int, error) {
	c := &counter{}
	s := Adapt(c)
	if !r.Serialize(s) {
		return 0, Failure(s)
	}
	return c.n, nil
}

type counter struct {
	n int
}

func (c *counter) Mode() Mode { return Capture }

func (c *counter) Visit(string, Field) error {
	c.n++
	return nil
}

// CheckFieldCount returns ErrSchemaMismatch unless r exposes want fields.
func CheckFieldCount(r Record, want int) error {
	got, err := FieldCount(r)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: record has %d fields, expected %d", ErrSchemaMismatch, got, want)
	}
	return nil
}
