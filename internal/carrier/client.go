package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client pousse les adresses résolues vers le système de routage du
// transporteur. La plateforme est cliente ici : le transporteur expose
// une API REST authentifiée par clé.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient crée le client transporteur. Retourne nil quand aucune URL
// n'est configurée : les appelants traitent un client nil comme
// l'absence de transporteur.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		return nil
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyResolved transmet l'adresse réelle d'un code résolu au routage
// du transporteur.
func (c *Client) NotifyResolved(ctx context.Context, code, destination string) error {
	payload := map[string]string{
		"code":        code,
		"destination": destination,
	}
	return c.post(ctx, "routing/resolutions", payload)
}

// post exécute une requête POST JSON vers l'API du transporteur.
func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := c.baseURL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	url += path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return fmt.Errorf("carrier: code de réponse %d: %v", resp.StatusCode, errorBody)
	}

	return nil
}
