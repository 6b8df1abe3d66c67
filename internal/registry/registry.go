// Package registry resolves client applications. Client records live in the
// forum's database and are read-only here; one built-in test client exists
// regardless of database state.
package registry

import (
	"strings"

	"github.com/sparkloc/oidcd/internal/server/db"
)

// TestClientID identifies the built-in client used for interactive testing
// of the flow. It is always resolvable and skips secret validation.
const TestClientID = "test"

// Client is a resolved client application.
type Client struct {
	ClientID     string
	ClientSecret string
	Name         string
	RedirectURIs string // comma-separated allow-list
	OwnerID      int64

	// BuiltIn marks the test client: always available, no secret check.
	// The flag is the only sanctioned way to bypass secret validation;
	// call sites must never compare client ids against TestClientID.
	BuiltIn bool
}

// RedirectAllowed reports whether uri appears in the client's allow-list.
func (c *Client) RedirectAllowed(uri string) bool {
	for _, allowed := range strings.Split(c.RedirectURIs, ",") {
		if strings.TrimSpace(allowed) == uri {
			return true
		}
	}
	return false
}

// Resolver looks up clients by client_id. Returns (nil, nil) when unknown.
type Resolver interface {
	Resolve(clientID string) (*Client, error)
}

// StoreResolver resolves clients from the SQLite store, with the built-in
// test client layered on top.
type StoreResolver struct {
	store *db.Store
}

// NewStoreResolver creates a Resolver backed by store.
func NewStoreResolver(store *db.Store) *StoreResolver {
	return &StoreResolver{store: store}
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(clientID string) (*Client, error) {
	if clientID == "" {
		return nil, nil
	}
	if clientID == TestClientID {
		return builtInTestClient(), nil
	}

	rec, err := r.store.GetClient(clientID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return &Client{
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
		Name:         rec.Name,
		RedirectURIs: rec.RedirectURIs,
		OwnerID:      rec.OwnerID,
	}, nil
}

func builtInTestClient() *Client {
	return &Client{
		ClientID:     TestClientID,
		ClientSecret: "__TEST_APP_NO_SECRET__",
		Name:         "Test App (Built-in)",
		RedirectURIs: "http://localhost:8080/,http://localhost:3000/,http://127.0.0.1:8080/,http://127.0.0.1:3000/",
		OwnerID:      0,
		BuiltIn:      true,
	}
}
