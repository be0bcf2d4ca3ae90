package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"automarket/auth"
	"automarket/catalog"
	"automarket/config"
	"automarket/i18n"
	"automarket/models"
	"automarket/proposals"
	"automarket/store"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
)

// App holds the handler dependencies. Identity is never ambient: every
// handler reads it from the request session.
type App struct {
	Store     *store.Client
	Proposals *proposals.Manager
}

func New(c *store.Client) *App {
	return &App{
		Store:     c,
		Proposals: proposals.NewManager(c),
	}
}

func (a *App) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/", a.IndexHandler)
	mux.HandleFunc("/login", a.LoginHandler)
	mux.HandleFunc("/register", a.RegisterHandler)
	mux.HandleFunc("/logout", a.LogoutHandler)
	mux.HandleFunc("/buyer", a.BuyerHandler)
	mux.HandleFunc("/vendor", a.VendorHandler)
	mux.HandleFunc("/vendor/listings/new", a.NewListingHandler)
	mux.HandleFunc("/proposals", a.ProposalsHandler)
	mux.HandleFunc("/proposals/submit", a.SubmitProposalHandler)
	mux.HandleFunc("/proposals/cancel", a.CancelProposalHandler)
	mux.HandleFunc("/proposals/accept", a.AcceptProposalHandler)
	mux.HandleFunc("/proposals/reject", a.RejectProposalHandler)

	// Captcha images for the registration form
	mux.Handle("/captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))

	a.registerAPIHandlers(mux)
}

// requireRole is the per-page mount guard: anonymous visitors and
// wrong-role sessions are both sent to /login before any protected data
// is fetched.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) *models.Session {
	sess := auth.Current(r)
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil
	}
	for _, role := range roles {
		if sess.Role == role {
			return sess
		}
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
	return nil
}

// IndexHandler serves the public catalog with search and a detail overlay.
func (a *App) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if sess := auth.Current(r); sess != nil {
		// Logged-in users land on their role dashboard
		switch sess.Role {
		case models.RoleBuyer:
			http.Redirect(w, r, "/buyer", http.StatusSeeOther)
			return
		case models.RoleVendor:
			http.Redirect(w, r, "/vendor", http.StatusSeeOther)
			return
		}
	}
	a.renderCatalog(w, r, "index.html")
}

func (a *App) renderCatalog(w http.ResponseWriter, r *http.Request, page string) {
	listings, err := a.Store.AllListings(r.Context())
	if err != nil {
		log.Printf("Error fetching listings: %v", err)
		a.renderTemplate(w, r, page, map[string]any{
			"Error": i18n.T(i18n.DetectLanguage(r), "LoadFailed"),
			"Query": r.URL.Query().Get("q"),
		})
		return
	}

	query := r.URL.Query().Get("q")
	filtered := catalog.Search(query, listings)

	data := map[string]any{
		"Listings": filtered,
		"Query":    query,
	}
	// Single-item detail overlay; closing it is a link back to the bare page
	if detailID := r.URL.Query().Get("detail"); detailID != "" {
		if detail, ok := catalog.Find(detailID, listings); ok {
			data["Detail"] = detail
		}
	}
	if key := r.URL.Query().Get("msg"); key != "" {
		data["Message"] = i18n.T(i18n.DetectLanguage(r), key)
	}
	if key := r.URL.Query().Get("err"); key != "" {
		data["Error"] = i18n.T(i18n.DetectLanguage(r), key)
	}
	a.renderTemplate(w, r, page, data)
}

func (a *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	if r.Method == http.MethodPost {
		ip := getClientIP(r)
		if !loginLimiter.Allow(ip) {
			a.renderTemplate(w, r, "login.html", map[string]any{"Error": i18n.T(lang, "TooManyAttempts")})
			return
		}

		email := r.FormValue("email")
		password := r.FormValue("password")
		if email == "" || password == "" {
			a.renderTemplate(w, r, "login.html", map[string]any{"Error": i18n.T(lang, "FillEmailPassword"), "Email": email})
			return
		}

		filter := url.Values{}
		filter.Set("email", email)
		filter.Set("password", password)
		accounts, err := a.Store.FindAccounts(r.Context(), filter)
		if err != nil {
			log.Printf("Error looking up account: %v", err)
			a.renderTemplate(w, r, "login.html", map[string]any{"Error": i18n.T(lang, "LoginFailed"), "Email": email})
			return
		}
		if len(accounts) == 0 {
			loginLimiter.RecordFailure(ip)
			a.renderTemplate(w, r, "login.html", map[string]any{"Error": i18n.T(lang, "InvalidCredentials"), "Email": email})
			return
		}

		loginLimiter.Reset(ip)
		account := accounts[0]
		auth.SetSession(w, r, account)
		redirectByRole(w, r, account.Role)
		return
	}

	a.renderTemplate(w, r, "login.html", nil)
}

func (a *App) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)

	if r.Method == http.MethodPost {
		name := r.FormValue("name")
		email := r.FormValue("email")
		password := r.FormValue("password")
		role := r.FormValue("role")

		renderError := func(key string) {
			a.renderTemplate(w, r, "register.html", map[string]any{
				"Error":     i18n.T(lang, key),
				"Name":      name,
				"Email":     email,
				"Role":      role,
				"CaptchaID": captcha.New(),
			})
		}

		ip := getClientIP(r)
		if !registerLimiter.Allow(ip) {
			renderError("TooManyAttempts")
			return
		}

		if !captcha.VerifyString(r.FormValue("captcha_id"), r.FormValue("captcha_solution")) {
			renderError("CaptchaWrong")
			return
		}

		if name == "" || email == "" || password == "" {
			renderError("FillAllFields")
			return
		}
		if role != models.RoleBuyer && role != models.RoleVendor {
			renderError("FillAllFields")
			return
		}

		// Uniqueness is a read-before-write check; two concurrent
		// registrations can still race.
		filter := url.Values{}
		filter.Set("email", email)
		existing, err := a.Store.FindAccounts(r.Context(), filter)
		if err != nil {
			log.Printf("Error checking for existing account: %v", err)
			renderError("RegisterFailed")
			return
		}
		if len(existing) > 0 {
			renderError("EmailAlreadyRegistered")
			return
		}

		account, err := a.Store.CreateAccount(r.Context(), models.Account{
			Name:     name,
			Email:    email,
			Password: password,
			Role:     role,
		})
		if err != nil {
			log.Printf("Error creating account: %v", err)
			renderError("RegisterFailed")
			return
		}

		registerLimiter.RecordFailure(ip)

		auth.SetSession(w, r, account)
		redirectByRole(w, r, account.Role)
		return
	}

	a.renderTemplate(w, r, "register.html", map[string]any{
		"Role":      models.RoleBuyer,
		"CaptchaID": captcha.New(),
	})
}

func (a *App) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// BuyerHandler serves the buyer dashboard: the catalog with search, detail
// overlay and proposal submission.
func (a *App) BuyerHandler(w http.ResponseWriter, r *http.Request) {
	sess := requireRole(w, r, models.RoleBuyer)
	if sess == nil {
		return
	}
	a.renderCatalog(w, r, "buyer.html")
}

// VendorHandler serves the vendor dashboard with the vendor's own listings.
func (a *App) VendorHandler(w http.ResponseWriter, r *http.Request) {
	sess := requireRole(w, r, models.RoleVendor)
	if sess == nil {
		return
	}

	listings, err := a.Store.AllListings(r.Context())
	if err != nil {
		log.Printf("Error fetching listings: %v", err)
		a.renderTemplate(w, r, "vendor.html", map[string]any{"Error": i18n.T(i18n.DetectLanguage(r), "LoadFailed")})
		return
	}

	a.renderTemplate(w, r, "vendor.html", map[string]any{
		"Listings": catalog.OwnedBy(sess.AccountID, listings),
	})
}

// NewListingHandler serves and processes the vendor listing-creation form.
func (a *App) NewListingHandler(w http.ResponseWriter, r *http.Request) {
	sess := requireRole(w, r, models.RoleVendor)
	if sess == nil {
		return
	}
	lang := i18n.DetectLanguage(r)

	if r.Method == http.MethodPost {
		name := r.FormValue("name")
		description := r.FormValue("description")
		mileageStr := r.FormValue("mileage")
		transmission := r.FormValue("transmission")
		fuelType := r.FormValue("fuelType")
		priceStr := r.FormValue("price")
		imageURL := r.FormValue("imageUrl")

		form := map[string]any{
			"Name": name, "Description": description, "MileageStr": mileageStr,
			"Transmission": transmission, "FuelType": fuelType,
			"PriceStr": priceStr, "ImageURL": imageURL,
		}

		if name == "" || mileageStr == "" || transmission == "" || fuelType == "" || priceStr == "" {
			form["Error"] = i18n.T(lang, "FillAllFields")
			a.renderTemplate(w, r, "listing_new.html", form)
			return
		}

		mileage, errM := strconv.Atoi(mileageStr)
		price, errP := strconv.ParseFloat(priceStr, 64)
		if errM != nil || errP != nil || mileage < 0 || price < 0 {
			form["Error"] = i18n.T(lang, "InvalidNumbers")
			a.renderTemplate(w, r, "listing_new.html", form)
			return
		}

		if imageURL == "" {
			imageURL = "/static/img/placeholder.svg"
		}

		_, err := a.Store.CreateListing(r.Context(), models.Listing{
			VendorID:     sess.AccountID,
			Name:         name,
			Description:  description,
			Mileage:      mileage,
			Transmission: transmission,
			FuelType:     fuelType,
			Price:        price,
			ImageURL:     imageURL,
		})
		if err != nil {
			log.Printf("Error creating listing: %v", err)
			form["Error"] = i18n.T(lang, "ListingFailed")
			a.renderTemplate(w, r, "listing_new.html", form)
			return
		}

		a.renderTemplate(w, r, "listing_new.html", map[string]any{
			"Message": i18n.T(lang, "ListingCreated"),
		})
		return
	}

	a.renderTemplate(w, r, "listing_new.html", nil)
}

// ProposalsHandler shows the role-scoped proposal list: buyers see their
// own proposals, vendors the ones against their listings.
func (a *App) ProposalsHandler(w http.ResponseWriter, r *http.Request) {
	sess := requireRole(w, r, models.RoleBuyer, models.RoleVendor)
	if sess == nil {
		return
	}
	lang := i18n.DetectLanguage(r)

	views, err := a.Proposals.VisibleTo(r.Context(), sess)
	if err != nil {
		log.Printf("Error fetching proposals: %v", err)
		a.renderTemplate(w, r, "proposals.html", map[string]any{
			"Error": i18n.T(lang, "ProposalFailed"),
		})
		return
	}

	data := map[string]any{"Proposals": views}
	if key := r.URL.Query().Get("msg"); key != "" {
		data["Message"] = i18n.T(lang, key)
	}
	if key := r.URL.Query().Get("err"); key != "" {
		data["Error"] = i18n.T(lang, key)
	}
	a.renderTemplate(w, r, "proposals.html", data)
}

func (a *App) SubmitProposalHandler(w http.ResponseWriter, r *http.Request) {
	sess := requireRole(w, r, models.RoleBuyer)
	if sess == nil {
		return
	}
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/buyer", http.StatusSeeOther)
		return
	}

	listings, err := a.Store.AllListings(r.Context())
	if err != nil {
		log.Printf("Error fetching listings: %v", err)
		http.Redirect(w, r, "/buyer?err=ProposalFailed", http.StatusSeeOther)
		return
	}
	listing, ok := catalog.Find(r.FormValue("listingId"), listings)
	if !ok {
		http.Redirect(w, r, "/buyer?err=UnknownVehicle", http.StatusSeeOther)
		return
	}

	_, err = a.Proposals.Submit(r.Context(), sess, listing)
	if err != nil {
		http.Redirect(w, r, "/buyer?err="+proposalOutcomeKey(err, "ProposalSubmitted"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/buyer?msg=ProposalSubmitted", http.StatusSeeOther)
}

func (a *App) CancelProposalHandler(w http.ResponseWriter, r *http.Request) {
	sess := requireRole(w, r, models.RoleBuyer)
	if sess == nil {
		return
	}
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/proposals", http.StatusSeeOther)
		return
	}
	err := a.Proposals.Cancel(r.Context(), sess, r.FormValue("id"))
	redirectProposalOutcome(w, r, err, "ProposalCancelled")
}

func (a *App) AcceptProposalHandler(w http.ResponseWriter, r *http.Request) {
	sess := requireRole(w, r, models.RoleVendor)
	if sess == nil {
		return
	}
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/proposals", http.StatusSeeOther)
		return
	}
	err := a.Proposals.Accept(r.Context(), sess, r.FormValue("id"))
	redirectProposalOutcome(w, r, err, "ProposalAccepted")
}

func (a *App) RejectProposalHandler(w http.ResponseWriter, r *http.Request) {
	sess := requireRole(w, r, models.RoleVendor)
	if sess == nil {
		return
	}
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/proposals", http.StatusSeeOther)
		return
	}
	err := a.Proposals.Reject(r.Context(), sess, r.FormValue("id"))
	redirectProposalOutcome(w, r, err, "ProposalRejected")
}

func redirectProposalOutcome(w http.ResponseWriter, r *http.Request, err error, successKey string) {
	if err == nil {
		http.Redirect(w, r, "/proposals?msg="+successKey, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/proposals?err="+proposalOutcomeKey(err, successKey), http.StatusSeeOther)
}

// proposalOutcomeKey maps lifecycle errors onto user-facing message keys
// per the error taxonomy: precise messages for business-rule refusals, a
// generic retry message for store failures.
func proposalOutcomeKey(err error, successKey string) string {
	switch {
	case err == nil:
		return successKey
	case errors.Is(err, proposals.ErrAlreadySubmitted):
		return "ProposalAlreadySubmitted"
	case errors.Is(err, proposals.ErrNotPending):
		return "ProposalConflict"
	case errors.Is(err, proposals.ErrNotOwner),
		errors.Is(err, proposals.ErrNotBuyer),
		errors.Is(err, proposals.ErrNotVendor):
		return "Unauthorized"
	default:
		log.Printf("Proposal operation failed: %v", err)
		return "ProposalFailed"
	}
}

func redirectByRole(w http.ResponseWriter, r *http.Request, role string) {
	switch role {
	case models.RoleBuyer:
		http.Redirect(w, r, "/buyer", http.StatusSeeOther)
	case models.RoleVendor:
		http.Redirect(w, r, "/vendor", http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (a *App) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	lang := i18n.DetectLanguage(r)

	funcMap := template.FuncMap{
		"T": func(key string) string {
			return i18n.T(lang, key)
		},
	}

	tmpl, err := template.New(name).Funcs(funcMap).ParseFiles("templates/layout.html", "templates/"+name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	csrfField := csrf.TemplateField(r)
	sess := auth.Current(r)

	if m, ok := data.(map[string]any); ok {
		if _, exists := m["AppName"]; !exists {
			m["AppName"] = config.AppConfig.AppName
		}
		m["Lang"] = lang
		m["csrfField"] = csrfField
		m["Session"] = sess
	} else if data == nil {
		data = map[string]any{
			"AppName":   config.AppConfig.AppName,
			"Lang":      lang,
			"csrfField": csrfField,
			"Session":   sess,
		}
	}

	tmpl.ExecuteTemplate(w, "layout", data)
}
