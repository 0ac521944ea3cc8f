package enums

// UnavailableReason explains why a cart line cannot be fulfilled.
type UnavailableReason string

const (
	UnavailableNotAvailable      UnavailableReason = "not-available"
	UnavailableInsufficientStock UnavailableReason = "insufficient-stock"
)

func (r UnavailableReason) String() string {
	return string(r)
}
