package enums

import "fmt"

// SaleSource records where a sale row came from.
type SaleSource string

const (
	SaleSourceSquare SaleSource = "square"
	SaleSourceManual SaleSource = "manual"
)

// String implements fmt.Stringer.
func (s SaleSource) String() string {
	return string(s)
}

// ParseSaleSource converts raw input into a SaleSource.
func ParseSaleSource(value string) (SaleSource, error) {
	switch SaleSource(value) {
	case SaleSourceSquare, SaleSourceManual:
		return SaleSource(value), nil
	}
	return "", fmt.Errorf("invalid sale source %q", value)
}
