// Package discretize owns the registry of discretization method labels
// a discrete time model may carry. The core model types record which
// method produced them so that a later undiscretization can invert the
// same mapping instead of guessing.
package discretize

// KnownMethods lists every accepted method label, including the common
// aliases for the rectangular rules.
var KnownMethods = []string{
	"bilinear",
	"tustin",
	"zoh",
	"forward difference",
	"forward euler",
	"forward rectangular",
	"backward difference",
	"backward euler",
	"backward rectangular",
	"lft",
	">>",
	"<<",
}

// IsKnown reports whether method is one of KnownMethods.
func IsKnown(method string) bool {
	for _, known := range KnownMethods {
		if method == known {
			return true
		}
	}
	return false
}
