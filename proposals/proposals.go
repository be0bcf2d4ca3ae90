// Package proposals owns the offer lifecycle: a buyer submits at most one
// proposal per listing, may cancel it while pending, and the vendor owning
// the listing accepts or rejects it. Accepted and rejected are terminal.
package proposals

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"automarket/catalog"
	"automarket/models"
	"automarket/store"
)

var (
	ErrNotBuyer         = errors.New("proposals: caller is not a buyer")
	ErrNotVendor        = errors.New("proposals: caller is not a vendor")
	ErrAlreadySubmitted = errors.New("proposals: proposal already submitted for this listing")
	ErrNotOwner         = errors.New("proposals: caller does not own this proposal")
	ErrNotPending       = errors.New("proposals: proposal is no longer pending")
	ErrNotFound         = errors.New("proposals: proposal not found")
)

type Manager struct {
	store *store.Client
}

func NewManager(c *store.Client) *Manager {
	return &Manager{store: c}
}

// Submit creates a pending proposal for (buyer, listing) with the listing
// price captured as the offered value. The one-per-pair rule is enforced
// with a read-before-write existence check; it is best-effort, not atomic.
func (m *Manager) Submit(ctx context.Context, buyer *models.Session, listing models.Listing) (models.Proposal, error) {
	if !buyer.IsBuyer() {
		return models.Proposal{}, ErrNotBuyer
	}

	filter := url.Values{}
	filter.Set("buyerId", buyer.AccountID)
	filter.Set("listingId", listing.ID)
	existing, err := m.store.FindProposals(ctx, filter)
	if err != nil {
		return models.Proposal{}, fmt.Errorf("checking existing proposals: %w", err)
	}
	// Any prior proposal blocks resubmission, whatever its status.
	if len(existing) > 0 {
		return models.Proposal{}, ErrAlreadySubmitted
	}

	return m.store.CreateProposal(ctx, models.Proposal{
		BuyerID:      buyer.AccountID,
		ListingID:    listing.ID,
		OfferedValue: listing.Price,
		Status:       models.StatusPending,
	})
}

// Cancel deletes a pending proposal on behalf of its owning buyer.
func (m *Manager) Cancel(ctx context.Context, buyer *models.Session, proposalID string) error {
	if !buyer.IsBuyer() {
		return ErrNotBuyer
	}

	p, err := m.get(ctx, proposalID)
	if err != nil {
		return err
	}
	if p.BuyerID != buyer.AccountID {
		return ErrNotOwner
	}
	if p.Status.Terminal() {
		return ErrNotPending
	}

	return m.store.DeleteProposal(ctx, proposalID)
}

// Accept transitions a pending proposal to accepted on behalf of the
// vendor owning the referenced listing.
func (m *Manager) Accept(ctx context.Context, vendor *models.Session, proposalID string) error {
	return m.transition(ctx, vendor, proposalID, models.StatusAccepted)
}

// Reject transitions a pending proposal to rejected.
func (m *Manager) Reject(ctx context.Context, vendor *models.Session, proposalID string) error {
	return m.transition(ctx, vendor, proposalID, models.StatusRejected)
}

func (m *Manager) transition(ctx context.Context, vendor *models.Session, proposalID string, to models.ProposalStatus) error {
	if !vendor.IsVendor() {
		return ErrNotVendor
	}

	p, err := m.get(ctx, proposalID)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return ErrNotPending
	}

	listings, err := m.store.AllListings(ctx)
	if err != nil {
		return fmt.Errorf("fetching listings: %w", err)
	}
	listing, ok := catalog.Find(p.ListingID, listings)
	if !ok || listing.VendorID != vendor.AccountID {
		return ErrNotOwner
	}

	return m.store.SetProposalStatus(ctx, proposalID, to)
}

// View pairs a proposal with the listing it targets for display.
type View struct {
	Proposal     models.Proposal
	Listing      models.Listing
	ListingKnown bool
}

// VisibleTo projects the proposal collection by role: buyers see their own
// proposals, vendors see proposals against their own listings. Anyone else
// sees nothing.
func (m *Manager) VisibleTo(ctx context.Context, sess *models.Session) ([]View, error) {
	if sess == nil {
		return nil, nil
	}

	listings, err := m.store.AllListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching listings: %w", err)
	}

	var all []models.Proposal
	switch {
	case sess.IsBuyer():
		filter := url.Values{}
		filter.Set("buyerId", sess.AccountID)
		all, err = m.store.FindProposals(ctx, filter)
	case sess.IsVendor():
		all, err = m.store.FindProposals(ctx, nil)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching proposals: %w", err)
	}

	views := []View{}
	for _, p := range all {
		listing, known := catalog.Find(p.ListingID, listings)
		if sess.IsVendor() && (!known || listing.VendorID != sess.AccountID) {
			continue
		}
		views = append(views, View{Proposal: p, Listing: listing, ListingKnown: known})
	}
	return views, nil
}

func (m *Manager) get(ctx context.Context, proposalID string) (models.Proposal, error) {
	filter := url.Values{}
	filter.Set("id", proposalID)
	found, err := m.store.FindProposals(ctx, filter)
	if err != nil {
		return models.Proposal{}, fmt.Errorf("fetching proposal: %w", err)
	}
	if len(found) == 0 {
		return models.Proposal{}, ErrNotFound
	}
	return found[0], nil
}
