package checkout

import (
	"math"
	"strconv"
	"strings"
)

// MarkupMultiplier is applied to the catalog base price before display.
const MarkupMultiplier = 1.2

// Status line texts.
const (
	MessageDefault     = "Buy your favorite product"
	MessagePricePrefix = "Your product price is $"
	MessageSubmitting  = "Placing your order..."
	MessageSuccess     = "✅ Thank you for your order!"
	MessageFailure     = "❌ Failed to place order. Please try again."
)

// StatusKind tags the active status variant.
type StatusKind int

const (
	StatusDefault StatusKind = iota
	StatusPriceKnown
	StatusSubmitting
	StatusSuccess
	StatusFailure
)

var statusKindNames = [...]string{"default", "price_known", "submitting", "success", "failure"}

func (k StatusKind) String() string {
	if k < 0 || int(k) >= len(statusKindNames) {
		return "unknown"
	}
	return statusKindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k StatusKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Status is the single user-visible status line. Price is only meaningful
// when Kind is StatusPriceKnown and already includes the markup.
type Status struct {
	Kind  StatusKind
	Price float64
}

// PriceKnown returns the status for a quoted display price.
func PriceKnown(displayPrice float64) Status {
	return Status{Kind: StatusPriceKnown, Price: displayPrice}
}

// Message renders the status line.
func (s Status) Message() string {
	switch s.Kind {
	case StatusPriceKnown:
		return MessagePricePrefix + FormatNumber(s.Price)
	case StatusSubmitting:
		return MessageSubmitting
	case StatusSuccess:
		return MessageSuccess
	case StatusFailure:
		return MessageFailure
	default:
		return MessageDefault
	}
}

// FormatNumber renders v the way a browser stringifies a number: shortest
// round-trip digits with no rounding, so 10*1.2 prints "12" while 1.1*1.2
// prints "1.32" and 0.1*3 keeps its "0.30000000000000004" tail. Magnitudes
// below 1e-6 or from 1e21 up switch to exponent notation ("1e+21").
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		digits := strings.TrimLeft(exp[1:], "0")
		return mant + "e" + exp[:1] + digits
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Phase is the submission lifecycle flag gating form interactivity.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
)

func (p Phase) String() string {
	if p == PhaseSubmitting {
		return "submitting"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// FormState is everything the checkout form shows.
type FormState struct {
	ProductID string
	Quantity  string
	Status    Status
	Phase     Phase
}

// Submitting reports whether inputs and the submit control are disabled.
func (f FormState) Submitting() bool { return f.Phase == PhaseSubmitting }
