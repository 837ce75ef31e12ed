package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// maxDocumentBytes bounds an uploaded résumé or sample letter.
const maxDocumentBytes = 1 << 20

var errNotText = errors.New("document is not a text file")

// downloadText fetches a document Telegram stores under fileID and decodes
// it as UTF-8, falling back to Latin-1 for legacy exports.
func downloadText(ctx context.Context, api API, client *http.Client, fileID string) (string, error) {
	url, err := api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolving file %s: %w", fileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading file %s: unexpected status %d", fileID, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading file %s: %w", fileID, err)
	}
	if len(raw) > maxDocumentBytes {
		return "", fmt.Errorf("file %s exceeds %d bytes", fileID, maxDocumentBytes)
	}
	return decodeText(raw)
}

// decodeText turns raw bytes into normalized text. Binary content such as
// a PDF is rejected.
func decodeText(raw []byte) (string, error) {
	if looksBinary(raw) {
		return "", errNotText
	}
	var text string
	if utf8.Valid(raw) {
		text = string(raw)
	} else {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decoding latin-1: %w", err)
		}
		text = string(decoded)
	}
	text = strings.TrimSpace(norm.NFC.String(strings.TrimPrefix(text, "\uFEFF")))
	if text == "" {
		return "", errNotText
	}
	return text, nil
}

func looksBinary(raw []byte) bool {
	if strings.HasPrefix(string(raw[:min(len(raw), 5)]), "%PDF-") {
		return true
	}
	for _, c := range raw[:min(len(raw), 512)] {
		if c == 0 {
			return true
		}
	}
	return false
}
