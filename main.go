package main

import (
	"fmt"
	"log"
	"net/http"

	"automarket/auth"
	"automarket/config"
	"automarket/handlers"
	"automarket/i18n"
	"automarket/recordstore"
	"automarket/store"

	"github.com/gorilla/csrf"
)

func main() {
	if err := config.LoadConfig("config.json"); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if err := i18n.LoadTranslations("i18n"); err != nil {
		log.Fatalf("Error loading translations: %v", err)
	}

	auth.InitStore()

	root := http.NewServeMux()

	// Record store: external when configured, otherwise the embedded
	// sqlite-backed store mounted under /store. The store endpoint sits
	// outside the CSRF wrapper: it is a machine contract, not a form.
	storeURL := config.AppConfig.StoreBaseURL
	if storeURL == "" {
		embedded, err := recordstore.Open(config.AppConfig.StorePath)
		if err != nil {
			log.Fatalf("Error opening embedded record store: %v", err)
		}
		defer embedded.Close()

		if err := embedded.SeedDemo(); err != nil {
			log.Fatalf("Error seeding embedded record store: %v", err)
		}

		root.Handle("/store/", http.StripPrefix("/store", embedded.Handler()))
		storeURL = fmt.Sprintf("http://%s:%d/store", config.AppConfig.ListenIP, config.AppConfig.ListenPort)
		log.Printf("Using embedded record store at %s (%s)", storeURL, config.AppConfig.StorePath)
	}

	app := handlers.New(store.New(storeURL))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	app.RegisterHandlers(mux)

	// CSRF protection over the page forms. The key is derived from the
	// session key; a dedicated key would be better in production.
	csrfMiddleware := csrf.Protect(
		[]byte(config.AppConfig.SessionKey),
		csrf.Secure(false), // Set to true in production with HTTPS
		csrf.Path("/"),
	)

	root.Handle("/", handlers.CORSMiddleware(csrfMiddleware(mux)))

	addr := fmt.Sprintf("%s:%d", config.AppConfig.ListenIP, config.AppConfig.ListenPort)
	log.Printf("Server starting on %s (%s)", addr, config.AppConfig.AppName)

	if err := http.ListenAndServe(addr, handlers.SecurityHeadersMiddleware(root)); err != nil {
		log.Fatal(err)
	}
}
