package persona

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/inbucket/html2text"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/log"
	"github.com/sandevgo/rpgai/pkg/retry"
)

const maxDocumentSize = 1 << 20

var ErrBinaryDocument = errors.New("document is not text")

// NormalizeDocument converts HTML to plain text and rejects binary content.
// The returned content type is what was stored.
func NormalizeDocument(filename string, raw []byte) (string, string, error) {
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return "", "", ErrBinaryDocument
	}

	if isHTML(filename, raw) {
		text, err := html2text.FromReader(bytes.NewReader(raw), html2text.Options{
			PrettyTables: true,
		})
		if err != nil {
			return "", "", fmt.Errorf("failed to convert html: %w", err)
		}
		return strings.TrimSpace(text), "text/html", nil
	}

	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if ct == "" || !strings.HasPrefix(ct, "text/") {
		ct = "text/plain"
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(string(raw)), ct, nil
}

func isHTML(filename string, raw []byte) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return strings.HasPrefix(http.DetectContentType(raw), "text/html")
}

func (s *Service) AddDocument(ctx context.Context, personaID, filename string, raw []byte) (*core.Document, error) {
	if _, err := s.personas.GetPersona(ctx, personaID); err != nil {
		return nil, err
	}

	content, ct, err := NormalizeDocument(filename, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	doc := &core.Document{
		PersonaID:   personaID,
		Filename:    filename,
		Content:     content,
		ContentType: ct,
	}
	if err := s.documents.AddDocument(ctx, doc); err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Info().
		Str("persona", personaID).
		Str("filename", filename).
		Int("chars", utf8.RuneCountInString(content)).
		Msg("document added")
	return doc, nil
}

// FetchDocument downloads an http(s) page and stores it as a document.
func (s *Service) FetchDocument(ctx context.Context, personaID, rawURL string) (*core.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid document url %q", rawURL)
	}

	var body []byte
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", core.AppUserAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = u.Host
	}
	if filepath.Ext(name) == "" && isHTML("", body) {
		name += ".html"
	}
	return s.AddDocument(ctx, personaID, name, body)
}

func (s *Service) Documents(ctx context.Context, personaID string) ([]core.Document, error) {
	return s.documents.GetDocuments(ctx, personaID)
}

func (s *Service) RemoveDocument(ctx context.Context, personaID, documentID string) error {
	return s.documents.DeleteDocument(ctx, personaID, documentID)
}
