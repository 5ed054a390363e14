// ABOUTME: Product and version identification
// ABOUTME: Printed at startup and by -version
package version

const (
	Product      = "dabdump"
	Manufacturer = "dabdump contributors"
	Version      = "0.3.0"
)

// String returns the product and version for log banners
func String() string {
	return Product + " " + Version
}
