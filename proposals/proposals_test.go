package proposals

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"testing"

	"automarket/models"
	"automarket/recordstore"
	"automarket/store"
)

var (
	testServer  *httptest.Server
	testClient  *store.Client
	testManager *Manager
)

func TestMain(m *testing.M) {
	path := "./test_proposals.db"
	backend, err := recordstore.Open(path)
	if err != nil {
		panic(err)
	}

	testServer = httptest.NewServer(backend.Handler())
	testClient = store.New(testServer.URL)
	testManager = NewManager(testClient)

	code := m.Run()

	testServer.Close()
	backend.Close()
	os.Remove(path)

	os.Exit(code)
}

func buyerSession(id string) *models.Session {
	return &models.Session{AccountID: id, Name: "Buyer " + id, Role: models.RoleBuyer}
}

func vendorSession(id string) *models.Session {
	return &models.Session{AccountID: id, Name: "Vendor " + id, Role: models.RoleVendor}
}

func createListing(t *testing.T, vendorID, name string, price float64) models.Listing {
	t.Helper()
	l, err := testClient.CreateListing(context.Background(), models.Listing{
		VendorID: vendorID,
		Name:     name,
		Price:    price,
	})
	if err != nil {
		t.Fatalf("CreateListing failed: %v", err)
	}
	return l
}

func TestSubmitCapturesListingPrice(t *testing.T) {
	ctx := context.Background()
	listing := createListing(t, "vend-1", "Gol 2018", 42000)

	p, err := testManager.Submit(ctx, buyerSession("buy-1"), listing)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if p.Status != models.StatusPending {
		t.Errorf("Expected pending status, got %q", p.Status)
	}
	if p.OfferedValue != 42000 {
		t.Errorf("Expected offered value 42000, got %v", p.OfferedValue)
	}
}

func TestSubmitRejectsNonBuyer(t *testing.T) {
	ctx := context.Background()
	listing := createListing(t, "vend-1", "Uno 2016", 20000)

	if _, err := testManager.Submit(ctx, vendorSession("vend-1"), listing); !errors.Is(err, ErrNotBuyer) {
		t.Errorf("Expected ErrNotBuyer, got %v", err)
	}
	if _, err := testManager.Submit(ctx, nil, listing); !errors.Is(err, ErrNotBuyer) {
		t.Errorf("Expected ErrNotBuyer for anonymous, got %v", err)
	}
}

func TestSubmitBlocksDuplicates(t *testing.T) {
	ctx := context.Background()
	buyer := buyerSession("buy-dup")
	listing := createListing(t, "vend-1", "Palio 2017", 30000)

	if _, err := testManager.Submit(ctx, buyer, listing); err != nil {
		t.Fatalf("First Submit failed: %v", err)
	}
	if _, err := testManager.Submit(ctx, buyer, listing); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestResubmitBlockedAfterRejection(t *testing.T) {
	ctx := context.Background()
	buyer := buyerSession("buy-rej")
	vendor := vendorSession("vend-rej")
	listing := createListing(t, vendor.AccountID, "Onix 2021", 65000)

	p, err := testManager.Submit(ctx, buyer, listing)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := testManager.Reject(ctx, vendor, p.ID); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	// The rejected record still blocks a new proposal for the pair.
	if _, err := testManager.Submit(ctx, buyer, listing); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted after rejection, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	buyer := buyerSession("buy-cancel")
	listing := createListing(t, "vend-1", "HB20 2019", 48000)

	p, err := testManager.Submit(ctx, buyer, listing)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := testManager.Cancel(ctx, buyerSession("somebody-else"), p.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner for foreign buyer, got %v", err)
	}

	if err := testManager.Cancel(ctx, buyer, p.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := testManager.Cancel(ctx, buyer, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after cancel, got %v", err)
	}

	// Cancelling frees the pair for a fresh submission.
	if _, err := testManager.Submit(ctx, buyer, listing); err != nil {
		t.Errorf("Resubmit after cancel failed: %v", err)
	}
}

func TestCancelBlockedOnceTerminal(t *testing.T) {
	ctx := context.Background()
	buyer := buyerSession("buy-term")
	vendor := vendorSession("vend-term")
	listing := createListing(t, vendor.AccountID, "Kwid 2022", 55000)

	p, err := testManager.Submit(ctx, buyer, listing)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := testManager.Accept(ctx, vendor, p.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if err := testManager.Cancel(ctx, buyer, p.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("Expected ErrNotPending for accepted proposal, got %v", err)
	}
	if err := testManager.Reject(ctx, vendor, p.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("Expected ErrNotPending for second transition, got %v", err)
	}
}

func TestTransitionGuards(t *testing.T) {
	ctx := context.Background()
	buyer := buyerSession("buy-guard")
	owner := vendorSession("vend-owner")
	listing := createListing(t, owner.AccountID, "Strada 2020", 90000)

	p, err := testManager.Submit(ctx, buyer, listing)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := testManager.Accept(ctx, buyer, p.ID); !errors.Is(err, ErrNotVendor) {
		t.Errorf("Expected ErrNotVendor for buyer caller, got %v", err)
	}
	if err := testManager.Accept(ctx, vendorSession("vend-other"), p.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner for foreign vendor, got %v", err)
	}
	if err := testManager.Accept(ctx, owner, "no-such-proposal"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := testManager.Accept(ctx, owner, p.ID); err != nil {
		t.Fatalf("Owner Accept failed: %v", err)
	}
}

func TestVisibleToScopesByRole(t *testing.T) {
	ctx := context.Background()
	buyerA := buyerSession("buy-vis-a")
	buyerB := buyerSession("buy-vis-b")
	vendor := vendorSession("vend-vis")
	other := vendorSession("vend-vis-other")

	mine := createListing(t, vendor.AccountID, "Civic 2020 Vis", 89900)
	theirs := createListing(t, other.AccountID, "Corolla 2019 Vis", 79500)

	pa, err := testManager.Submit(ctx, buyerA, mine)
	if err != nil {
		t.Fatalf("Submit A failed: %v", err)
	}
	if _, err := testManager.Submit(ctx, buyerB, mine); err != nil {
		t.Fatalf("Submit B failed: %v", err)
	}
	if _, err := testManager.Submit(ctx, buyerA, theirs); err != nil {
		t.Fatalf("Submit A on other listing failed: %v", err)
	}

	if err := testManager.Accept(ctx, vendor, pa.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	// Buyer A sees exactly their own two proposals, one now accepted.
	views, err := testManager.VisibleTo(ctx, buyerA)
	if err != nil {
		t.Fatalf("VisibleTo buyer failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Expected 2 views for buyer A, got %d", len(views))
	}
	var accepted int
	for _, v := range views {
		if v.Proposal.BuyerID != buyerA.AccountID {
			t.Errorf("Buyer A saw a foreign proposal: %+v", v.Proposal)
		}
		if v.Proposal.Status == models.StatusAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("Expected 1 accepted proposal for buyer A, got %d", accepted)
	}

	// The vendor sees only proposals against their own listings.
	views, err = testManager.VisibleTo(ctx, vendor)
	if err != nil {
		t.Fatalf("VisibleTo vendor failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Expected 2 views for vendor, got %d", len(views))
	}
	for _, v := range views {
		if !v.ListingKnown || v.Listing.VendorID != vendor.AccountID {
			t.Errorf("Vendor saw a proposal against a foreign listing: %+v", v)
		}
	}

	// Anonymous callers see nothing.
	views, err = testManager.VisibleTo(ctx, nil)
	if err != nil || len(views) != 0 {
		t.Errorf("Expected empty view set for anonymous, got %d (%v)", len(views), err)
	}
}
