// Package did asks the identity service to mint decentralized identifiers.
package did

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ulp-gateway/internal/upstream"
)

const service = "did"

type serviceEndpoint struct {
	Context  string   `json:"@context"`
	Type     string   `json:"@type"`
	Instance []string `json:"instance"`
}

type didService struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	ServiceEndpoint serviceEndpoint `json:"serviceEndpoint"`
}

type content struct {
	AlsoKnownAs []string     `json:"alsoKnownAs"`
	Services    []didService `json:"services"`
}

type generateRequest struct {
	Content []content `json:"content"`
}

type document struct {
	ID                 string `json:"id"`
	VerificationMethod []struct {
		ID         string `json:"id"`
		Controller string `json:"controller"`
	} `json:"verificationMethod"`
}

// Generator mints DIDs. The returned identifier is the controller of the
// first verification method of the generated document.
type Generator struct {
	baseURL string
	http    *upstream.Client
}

func New(baseURL string, client *upstream.Client) *Generator {
	if client == nil {
		client = upstream.NewClient(service)
	}
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

// Generate mints a DID for subject (a provider subject id, student id or
// UDISE code).
func (g *Generator) Generate(ctx context.Context, subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", upstream.NewError(upstream.CategoryRejected, service, "generate", "subject is required", nil)
	}
	req := generateRequest{Content: []content{{
		AlsoKnownAs: []string{"did." + subject},
		Services: []didService{{
			ID:   "IdentityHub",
			Type: "IdentityHub",
			ServiceEndpoint: serviceEndpoint{
				Context:  "schema.identity.foundation/hub",
				Type:     "UserServiceEndpoint",
				Instance: []string{"did:test:hub.id"},
			},
		}},
	}}}

	var docs []document
	if err := g.http.Do(ctx, upstream.Request{
		Op:     "generate",
		Method: http.MethodPost,
		URL:    g.baseURL + "/did/generate",
		Body:   req,
	}, &docs); err != nil {
		return "", err
	}
	if len(docs) == 0 || len(docs[0].VerificationMethod) == 0 || docs[0].VerificationMethod[0].Controller == "" {
		return "", upstream.NewError(upstream.CategoryBadData, service, "generate",
			fmt.Sprintf("no controller in generated document for %q", subject), nil)
	}
	return docs[0].VerificationMethod[0].Controller, nil
}
