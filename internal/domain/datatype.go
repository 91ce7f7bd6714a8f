package domain

import "fmt"

// DataType identifies one homogeneous subset of a request's imagery, e.g.
// one spectral band. The numeric identifiers are assigned by the upstream
// request catalog; imagery for a data type lives under the request directory
// in a folder named after the type.
type DataType int

// Known data types.
const (
	DataTypeThermal DataType = 22001
	DataTypeRGB     DataType = 22002
)

// Name returns the short name used in job names and directory layouts.
func (d DataType) Name() string {
	switch d {
	case DataTypeThermal:
		return "thermal"
	case DataTypeRGB:
		return "rgb"
	}
	return fmt.Sprintf("datatype-%d", int(d))
}

// ParseDataType maps a numeric identifier onto a known DataType.
// Returns an error for identifiers outside the known set.
func ParseDataType(id int) (DataType, error) {
	switch DataType(id) {
	case DataTypeThermal, DataTypeRGB:
		return DataType(id), nil
	}
	return 0, fmt.Errorf("unknown data type identifier %d", id)
}
