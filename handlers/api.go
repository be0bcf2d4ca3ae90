package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"

	"automarket/auth"
	"automarket/catalog"
	"automarket/i18n"
	"automarket/models"
	"automarket/proposals"
)

// JSON API under /api/v1. Authentication rides on the same session cookie
// as the pages; there is no separate token scheme.

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func (a *App) registerAPIHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/login", a.APILoginHandler)
	mux.HandleFunc("/api/v1/register", a.APIRegisterHandler)
	mux.HandleFunc("/api/v1/listings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			a.APIListListingsHandler(w, r)
		case http.MethodPost:
			a.APICreateListingHandler(w, r)
		default:
			lang := i18n.DetectLanguage(r)
			sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: i18n.T(lang, "MethodNotAllowed")})
		}
	})
	mux.HandleFunc("/api/v1/proposals", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			a.APIListProposalsHandler(w, r)
		case http.MethodPost:
			a.APISubmitProposalHandler(w, r)
		default:
			lang := i18n.DetectLanguage(r)
			sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: i18n.T(lang, "MethodNotAllowed")})
		}
	})
	mux.HandleFunc("/api/v1/proposals/cancel", a.APICancelProposalHandler)
	mux.HandleFunc("/api/v1/proposals/accept", a.APIAcceptProposalHandler)
	mux.HandleFunc("/api/v1/proposals/reject", a.APIRejectProposalHandler)
}

func (a *App) APILoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	if r.Method != http.MethodPost {
		sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: i18n.T(lang, "MethodNotAllowed")})
		return
	}

	ip := getClientIP(r)
	if !loginLimiter.Allow(ip) {
		sendJSONResponse(w, http.StatusTooManyRequests, APIResponse{Status: "error", Message: i18n.T(lang, "TooManyAttempts")})
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}
	if input.Email == "" || input.Password == "" {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "FillEmailPassword")})
		return
	}

	filter := url.Values{}
	filter.Set("email", input.Email)
	filter.Set("password", input.Password)
	accounts, err := a.Store.FindAccounts(r.Context(), filter)
	if err != nil {
		log.Printf("Error looking up account (API): %v", err)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "InternalServerError")})
		return
	}
	if len(accounts) == 0 {
		loginLimiter.RecordFailure(ip)
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidCredentials")})
		return
	}

	loginLimiter.Reset(ip)
	account := accounts[0]
	auth.SetSession(w, r, account)

	sendJSONResponse(w, http.StatusOK, APIResponse{
		Status: "success",
		Data: map[string]any{
			"accountId": account.ID,
			"name":      account.Name,
			"role":      account.Role,
		},
	})
}

func (a *App) APIRegisterHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	if r.Method != http.MethodPost {
		sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: i18n.T(lang, "MethodNotAllowed")})
		return
	}

	ip := getClientIP(r)
	if !registerLimiter.Allow(ip) {
		sendJSONResponse(w, http.StatusTooManyRequests, APIResponse{Status: "error", Message: i18n.T(lang, "TooManyAttempts")})
		return
	}

	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}
	if input.Name == "" || input.Email == "" || input.Password == "" ||
		(input.Role != models.RoleBuyer && input.Role != models.RoleVendor) {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "FillAllFields")})
		return
	}

	filter := url.Values{}
	filter.Set("email", input.Email)
	existing, err := a.Store.FindAccounts(r.Context(), filter)
	if err != nil {
		log.Printf("Error checking for existing account (API): %v", err)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "InternalServerError")})
		return
	}
	if len(existing) > 0 {
		sendJSONResponse(w, http.StatusConflict, APIResponse{Status: "error", Message: i18n.T(lang, "EmailAlreadyRegistered")})
		return
	}

	account, err := a.Store.CreateAccount(r.Context(), models.Account{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Role:     input.Role,
	})
	if err != nil {
		log.Printf("Error creating account (API): %v", err)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "InternalServerError")})
		return
	}

	// Count account creations against the per-IP limiter
	registerLimiter.RecordFailure(ip)

	auth.SetSession(w, r, account)

	sendJSONResponse(w, http.StatusCreated, APIResponse{
		Status: "success",
		Data: map[string]any{
			"accountId": account.ID,
			"name":      account.Name,
			"role":      account.Role,
		},
	})
}

// APIListListingsHandler serves the public catalog; ?q= applies the same
// substring search as the pages.
func (a *App) APIListListingsHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	listings, err := a.Store.AllListings(r.Context())
	if err != nil {
		log.Printf("Error fetching listings (API): %v", err)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "InternalServerError")})
		return
	}

	sendJSONResponse(w, http.StatusOK, APIResponse{
		Status: "success",
		Data:   catalog.Search(r.URL.Query().Get("q"), listings),
	})
}

func (a *App) APICreateListingHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	sess := auth.Current(r)
	if !sess.IsVendor() {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	var input models.Listing
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}
	if input.Name == "" || input.Transmission == "" || input.FuelType == "" ||
		input.Mileage < 0 || input.Price < 0 {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "FillAllFields")})
		return
	}

	input.ID = ""
	input.VendorID = sess.AccountID
	created, err := a.Store.CreateListing(r.Context(), input)
	if err != nil {
		log.Printf("Error creating listing (API): %v", err)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "ListingFailed")})
		return
	}

	sendJSONResponse(w, http.StatusCreated, APIResponse{Status: "success", Data: created})
}

// APIListProposalsHandler returns the caller's role-scoped proposal view.
func (a *App) APIListProposalsHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	sess := auth.Current(r)
	if sess == nil {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	views, err := a.Proposals.VisibleTo(r.Context(), sess)
	if err != nil {
		log.Printf("Error fetching proposals (API): %v", err)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "InternalServerError")})
		return
	}

	type item struct {
		Proposal models.Proposal `json:"proposal"`
		Listing  *models.Listing `json:"listing,omitempty"`
	}
	items := make([]item, 0, len(views))
	for _, v := range views {
		it := item{Proposal: v.Proposal}
		if v.ListingKnown {
			listing := v.Listing
			it.Listing = &listing
		}
		items = append(items, it)
	}

	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: items})
}

func (a *App) APISubmitProposalHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	sess := auth.Current(r)
	if !sess.IsBuyer() {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	var input struct {
		ListingID string `json:"listingId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.ListingID == "" {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}

	listings, err := a.Store.AllListings(r.Context())
	if err != nil {
		log.Printf("Error fetching listings (API): %v", err)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "InternalServerError")})
		return
	}
	listing, ok := catalog.Find(input.ListingID, listings)
	if !ok {
		sendJSONResponse(w, http.StatusNotFound, APIResponse{Status: "error", Message: i18n.T(lang, "UnknownVehicle")})
		return
	}

	created, err := a.Proposals.Submit(r.Context(), sess, listing)
	if err != nil {
		a.sendProposalError(w, lang, err)
		return
	}

	sendJSONResponse(w, http.StatusCreated, APIResponse{Status: "success", Data: created})
}

func (a *App) APICancelProposalHandler(w http.ResponseWriter, r *http.Request) {
	a.apiProposalAction(w, r, "ProposalCancelled", func(sess *models.Session, id string) error {
		return a.Proposals.Cancel(r.Context(), sess, id)
	})
}

func (a *App) APIAcceptProposalHandler(w http.ResponseWriter, r *http.Request) {
	a.apiProposalAction(w, r, "ProposalAccepted", func(sess *models.Session, id string) error {
		return a.Proposals.Accept(r.Context(), sess, id)
	})
}

func (a *App) APIRejectProposalHandler(w http.ResponseWriter, r *http.Request) {
	a.apiProposalAction(w, r, "ProposalRejected", func(sess *models.Session, id string) error {
		return a.Proposals.Reject(r.Context(), sess, id)
	})
}

func (a *App) apiProposalAction(w http.ResponseWriter, r *http.Request, successKey string, action func(*models.Session, string) error) {
	lang := i18n.DetectLanguage(r)
	if r.Method != http.MethodPost {
		sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: i18n.T(lang, "MethodNotAllowed")})
		return
	}

	sess := auth.Current(r)
	if sess == nil {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	var input struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.ID == "" {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}

	if err := action(sess, input.ID); err != nil {
		a.sendProposalError(w, lang, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(lang, successKey)})
}

func (a *App) sendProposalError(w http.ResponseWriter, lang string, err error) {
	switch {
	case errors.Is(err, proposals.ErrAlreadySubmitted):
		sendJSONResponse(w, http.StatusConflict, APIResponse{Status: "error", Message: i18n.T(lang, "ProposalAlreadySubmitted")})
	case errors.Is(err, proposals.ErrNotPending):
		sendJSONResponse(w, http.StatusConflict, APIResponse{Status: "error", Message: i18n.T(lang, "ProposalConflict")})
	case errors.Is(err, proposals.ErrNotOwner),
		errors.Is(err, proposals.ErrNotBuyer),
		errors.Is(err, proposals.ErrNotVendor):
		sendJSONResponse(w, http.StatusForbidden, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
	case errors.Is(err, proposals.ErrNotFound):
		sendJSONResponse(w, http.StatusNotFound, APIResponse{Status: "error", Message: i18n.T(lang, "ProposalFailed")})
	default:
		log.Printf("Proposal operation failed (API): %v", err)
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "ProposalFailed")})
	}
}
