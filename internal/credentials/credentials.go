// Package credentials manages the authentication configuration chain
// (configuration → scheme security config → secrets) attached to jobs and
// remote objects. Configurations are cloned per download target: the
// download agent deletes credentials once it reaches a final state, and a
// shared reference would let one finished download strand its siblings.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"submission-harvester/internal/models"
	"submission-harvester/internal/sparql"
	"submission-harvester/internal/vocab"
)

// ErrUnsupportedScheme is fatal: the owner carries a security configuration
// this service cannot clone.
var ErrUnsupportedScheme = errors.New("unsupported security scheme")

// Manager issues credential operations against the graph store.
type Manager struct {
	c   *sparql.Client
	log *slog.Logger
}

// New builds a manager.
func New(c *sparql.Client, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{c: c, log: log.With("component", "credentials")}
}

// Clone identifies the three entities of a cloned configuration.
type Clone struct {
	AuthConf string
	Config   string
	Creds    string
}

// Insert writes a fresh authentication configuration from intake input and
// returns its URI. The scheme decides which secret pair is stored.
func (m *Manager) Insert(ctx context.Context, graph string, auth *models.Authentication) (string, error) {
	authConfID := uuid.New().String()
	secConfID := uuid.New().String()
	credsID := uuid.New().String()
	authConf := vocab.AuthConfURIPrefix + authConfID
	secConf := vocab.SecConfURIPrefix + secConfID
	creds := vocab.CredsURIPrefix + credsID

	var secretTriples string
	switch auth.Scheme {
	case vocab.BasicAuthScheme:
		secretTriples = fmt.Sprintf("    %s mu:uuid %s ;\n      meb:username %s ;\n      muAccount:password %s .",
			sparql.EscapeURI(creds),
			sparql.EscapeString(credsID),
			sparql.EscapeString(auth.Username),
			sparql.EscapeString(auth.Password))
	case vocab.OAuth2Scheme:
		secretTriples = fmt.Sprintf("    %s mu:uuid %s ;\n      dgftOauth:clientId %s ;\n      dgftOauth:clientSecret %s .",
			sparql.EscapeURI(creds),
			sparql.EscapeString(credsID),
			sparql.EscapeString(auth.ClientID),
			sparql.EscapeString(auth.ClientSecret))
	default:
		return "", fmt.Errorf("scheme %q: %w", auth.Scheme, ErrUnsupportedScheme)
	}

	q := fmt.Sprintf(`%s
INSERT DATA {
  GRAPH %s {
    %s
      mu:uuid %s ;
      dgftSec:securityConfiguration %s ;
      dgftSec:secrets %s .
    %s a %s ;
      mu:uuid %s .
%s
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(authConf),
		sparql.EscapeString(authConfID),
		sparql.EscapeURI(secConf),
		sparql.EscapeURI(creds),
		sparql.EscapeURI(secConf),
		sparql.EscapeURI(auth.Scheme),
		sparql.EscapeString(secConfID),
		secretTriples)
	if err := m.c.Update(ctx, q); err != nil {
		return "", fmt.Errorf("insert authentication configuration: %w", err)
	}
	return authConf, nil
}

// CloneFor copies the owner's authentication configuration onto a new
// target, minting fresh identifiers for all three chain entities. A nil
// result with nil error means the owner has no authentication configured
// and the target will be fetched unauthenticated.
func (m *Manager) CloneFor(ctx context.Context, graph, ownerURI, targetURI string) (*Clone, error) {
	infoQuery := fmt.Sprintf(`%s
SELECT DISTINCT ?secType ?authConf WHERE {
  GRAPH %s {
    %s dgftSec:targetAuthenticationConfiguration ?authConf .
    ?authConf dgftSec:securityConfiguration/rdf:type ?secType .
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(ownerURI))

	rows, err := m.c.Query(ctx, infoQuery)
	if err != nil {
		return nil, fmt.Errorf("read authentication configuration: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	secType := rows[0]["secType"].Value
	sourceConf := rows[0]["authConf"].Value

	authConfID := uuid.New().String()
	secConfID := uuid.New().String()
	credsID := uuid.New().String()
	clone := &Clone{
		AuthConf: vocab.AuthConfURIPrefix + authConfID,
		Config:   vocab.SecConfURIPrefix + secConfID,
		Creds:    vocab.CredsURIPrefix + credsID,
	}

	var secretPattern, secretCopy string
	switch secType {
	case vocab.BasicAuthScheme:
		secretPattern = "?srcSecrets meb:username ?user ; muAccount:password ?pass ."
		secretCopy = fmt.Sprintf("%s meb:username ?user ; muAccount:password ?pass .", sparql.EscapeURI(clone.Creds))
	case vocab.OAuth2Scheme:
		secretPattern = "?srcSecrets dgftOauth:clientId ?clientId ; dgftOauth:clientSecret ?clientSecret ."
		secretCopy = fmt.Sprintf("%s dgftOauth:clientId ?clientId ; dgftOauth:clientSecret ?clientSecret .", sparql.EscapeURI(clone.Creds))
	default:
		return nil, fmt.Errorf("scheme %q on %s: %w", secType, ownerURI, ErrUnsupportedScheme)
	}

	q := fmt.Sprintf(`%s
INSERT {
  GRAPH %s {
    %s dgftSec:targetAuthenticationConfiguration %s .
    %s
      mu:uuid %s ;
      dgftSec:secrets %s ;
      dgftSec:securityConfiguration %s .
    %s mu:uuid %s .
    %s
    %s mu:uuid %s .
    %s ?srcConfP ?srcConfO .
  }
}
WHERE {
  GRAPH %s {
    %s dgftSec:securityConfiguration ?srcConf .
    ?srcConf ?srcConfP ?srcConfO .
    FILTER(?srcConfP != mu:uuid)
    %s dgftSec:secrets ?srcSecrets .
    %s
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(targetURI), sparql.EscapeURI(clone.AuthConf),
		sparql.EscapeURI(clone.AuthConf),
		sparql.EscapeString(authConfID),
		sparql.EscapeURI(clone.Creds),
		sparql.EscapeURI(clone.Config),
		sparql.EscapeURI(clone.Creds), sparql.EscapeString(credsID),
		secretCopy,
		sparql.EscapeURI(clone.Config), sparql.EscapeString(secConfID),
		sparql.EscapeURI(clone.Config),
		sparql.EscapeURI(graph),
		sparql.EscapeURI(sourceConf),
		sparql.EscapeURI(sourceConf),
		secretPattern)
	if err := m.c.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("clone authentication configuration: %w", err)
	}
	return clone, nil
}

// Cleanup deletes only the secret triples reachable from a configuration.
// The configuration shell stays behind so the structure remains inspectable.
func (m *Manager) Cleanup(ctx context.Context, authConf string) error {
	if authConf == "" {
		return nil
	}
	q := fmt.Sprintf(`%s
DELETE {
  GRAPH ?g { ?secrets ?p ?o . }
}
WHERE {
  GRAPH ?g {
    %s dgftSec:secrets ?secrets .
    ?secrets ?p ?o .
  }
}`, vocab.Prefixes, sparql.EscapeURI(authConf))
	if err := m.c.Update(ctx, q); err != nil {
		return fmt.Errorf("cleanup credentials: %w", err)
	}
	return nil
}

// CleanupAll best-effort cleans a set of configurations, logging rather than
// aborting on individual failures. Used on error paths where cleanup must
// run before the error is surfaced.
func (m *Manager) CleanupAll(ctx context.Context, authConfs []string) {
	for _, conf := range authConfs {
		if conf == "" {
			continue
		}
		if err := m.Cleanup(ctx, conf); err != nil {
			m.log.Error("credential cleanup failed", "authConf", conf, "error", err)
		}
	}
}
