package models

// Roles stored on accounts and carried in the session.
const (
	RoleBuyer  = "buyer"
	RoleVendor = "vendor"
)

type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"` // plaintext by store contract
	Role     string `json:"role"`    // "buyer" or "vendor"
}

type Listing struct {
	ID           string  `json:"id"`
	VendorID     string  `json:"ownerVendorId"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Mileage      int     `json:"mileage"`
	Transmission string  `json:"transmission"`
	FuelType     string  `json:"fuelType"`
	Price        float64 `json:"price"`
	ImageURL     string  `json:"imageUrl"`
}

type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusAccepted ProposalStatus = "accepted"
	StatusRejected ProposalStatus = "rejected"
)

// Terminal reports whether no further transitions are allowed.
func (s ProposalStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

type Proposal struct {
	ID           string         `json:"id"`
	BuyerID      string         `json:"buyerId"`
	ListingID    string         `json:"listingId"`
	OfferedValue float64        `json:"offeredValue"`
	Status       ProposalStatus `json:"status"`
}

// Normalize maps the legacy absent-status encoding onto the explicit
// pending value. Records written by older clients omit the field.
func (p *Proposal) Normalize() {
	if p.Status == "" {
		p.Status = StatusPending
	}
}

// Session is the client-held identity snapshot taken from an Account at
// login or registration time.
type Session struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

func (s *Session) IsBuyer() bool  { return s != nil && s.Role == RoleBuyer }
func (s *Session) IsVendor() bool { return s != nil && s.Role == RoleVendor }
