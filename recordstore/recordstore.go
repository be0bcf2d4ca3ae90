// Package recordstore is a generic JSON collection store over sqlite,
// speaking the same HTTP contract as the external record store: list with
// equality filters, create, partial update, delete. It backs local runs
// and tests so the application does not need an external store process.
package recordstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		UNIQUE (collection, id)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("recordstore: creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Insert stores a document and returns it with a store-assigned id when
// the document carries none.
func (s *Store) Insert(collection string, doc map[string]any) (map[string]any, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
		doc["id"] = id
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec("INSERT INTO records (collection, id, body) VALUES (?, ?, ?)",
		collection, id, string(body))
	if err != nil {
		return nil, fmt.Errorf("recordstore: inserting into %s: %w", collection, err)
	}
	return doc, nil
}

// List returns all documents of a collection in insertion order, keeping
// only those whose top-level fields equal every filter value. Filter
// comparison is string-based, matching the store's query-parameter
// contract.
func (s *Store) List(collection string, filter map[string]string) ([]map[string]any, error) {
	rows, err := s.db.Query("SELECT body FROM records WHERE collection = ? ORDER BY seq", collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []map[string]any{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			log.Printf("recordstore: scanning %s row: %v", collection, err)
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			log.Printf("recordstore: decoding %s document: %v", collection, err)
			continue
		}
		if matches(doc, filter) {
			docs = append(docs, doc)
		}
	}
	return docs, rows.Err()
}

// Get returns a single document, or ok=false when absent.
func (s *Store) Get(collection, id string) (map[string]any, bool, error) {
	var body string
	err := s.db.QueryRow("SELECT body FROM records WHERE collection = ? AND id = ?", collection, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Merge applies a partial update to an existing document and returns the
// result, or ok=false when the id is absent.
func (s *Store) Merge(collection, id string, patch map[string]any) (map[string]any, bool, error) {
	doc, ok, err := s.Get(collection, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, false, err
	}
	_, err = s.db.Exec("UPDATE records SET body = ? WHERE collection = ? AND id = ?",
		string(body), collection, id)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Remove deletes a document, reporting whether it existed.
func (s *Store) Remove(collection, id string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM records WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func matches(doc map[string]any, filter map[string]string) bool {
	for field, want := range filter {
		got, ok := doc[field]
		if !ok {
			return false
		}
		if stringify(got) != want {
			return false
		}
	}
	return true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; render integers without a
		// trailing .0 so ?mileage=45000 matches.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

// Handler exposes the store over HTTP:
//
//	GET    /{collection}?field=value   list with equality filter
//	POST   /{collection}               create, returns stored document
//	GET    /{collection}/{id}          fetch one
//	PATCH  /{collection}/{id}          merge fields
//	DELETE /{collection}/{id}          remove
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		collection, id := splitPath(r.URL.Path)
		if collection == "" {
			http.NotFound(w, r)
			return
		}

		switch {
		case id == "" && r.Method == http.MethodGet:
			filter := map[string]string{}
			for key, vals := range r.URL.Query() {
				if len(vals) > 0 {
					filter[key] = vals[0]
				}
			}
			docs, err := s.List(collection, filter)
			if err != nil {
				storeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, docs)

		case id == "" && r.Method == http.MethodPost:
			var doc map[string]any
			if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
				http.Error(w, "invalid JSON body", http.StatusBadRequest)
				return
			}
			created, err := s.Insert(collection, doc)
			if err != nil {
				storeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case id != "" && r.Method == http.MethodGet:
			doc, ok, err := s.Get(collection, id)
			if err != nil {
				storeError(w, err)
				return
			}
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, http.StatusOK, doc)

		case id != "" && r.Method == http.MethodPatch:
			var patch map[string]any
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				http.Error(w, "invalid JSON body", http.StatusBadRequest)
				return
			}
			doc, ok, err := s.Merge(collection, id, patch)
			if err != nil {
				storeError(w, err)
				return
			}
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, http.StatusOK, doc)

		case id != "" && r.Method == http.MethodDelete:
			ok, err := s.Remove(collection, id)
			if err != nil {
				storeError(w, err)
				return
			}
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{})

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func splitPath(path string) (collection, id string) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	collection = parts[0]
	if len(parts) == 2 {
		id = parts[1]
	}
	return collection, id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func storeError(w http.ResponseWriter, err error) {
	log.Printf("recordstore: %v", err)
	http.Error(w, "internal store error", http.StatusInternalServerError)
}
