package domain

// MaxPageSize caps the number of claims returned by one index query.
const MaxPageSize uint32 = 100

// Address is an opaque account or contract identifier.
type Address string

type Claim struct {
	ID               uint64      `json:"id"`
	Creator          Address     `json:"creator"`
	Recipient        Address     `json:"recipient"`
	Amount           Amount      `json:"amount"`
	Token            Address     `json:"token"`
	Status           ClaimStatus `json:"status"`
	CreatedAt        uint64      `json:"created_at"`
	ClaimWindowStart uint64      `json:"claim_window_start"`
	ClaimWindowEnd   uint64      `json:"claim_window_end"`
}

// ClaimWindowConfig is the process-wide claim window setting. The zero value
// is the default when nothing has been stored.
type ClaimWindowConfig struct {
	WindowDurationSecs uint64 `json:"window_duration_secs" yaml:"window_duration_secs"`
	MinClaimDelaySecs  uint64 `json:"min_claim_delay_secs" yaml:"min_claim_delay_secs"`
}

// GetClaimResult is either Found with a claim or NotFound.
type GetClaimResult struct {
	found bool
	claim Claim
}

func Found(c Claim) GetClaimResult { return GetClaimResult{found: true, claim: c} }

func NotFound() GetClaimResult { return GetClaimResult{} }

// Claim returns the claim and true for Found, or the zero claim and false.
func (r GetClaimResult) Claim() (Claim, bool) { return r.claim, r.found }

func (r GetClaimResult) IsFound() bool { return r.found }

func (r GetClaimResult) String() string {
	if r.found {
		return "found"
	}
	return "not_found"
}

// Index names one of the two secondary indices over claims.
type Index int

const (
	ByRecipient Index = iota
	ByCreator
)

func (i Index) String() string {
	switch i {
	case ByRecipient:
		return "by_recipient"
	case ByCreator:
		return "by_creator"
	default:
		return "unknown"
	}
}

// Owner returns the address a claim is filed under in this index.
func (i Index) Owner(c Claim) Address {
	if i == ByCreator {
		return c.Creator
	}
	return c.Recipient
}
