// Package eveapi implements the EveAPI port against the legacy XML API.
package eveapi

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EveAPI = (*Client)(nil)

// DefaultBaseURL is the production XML API host.
const DefaultBaseURL = "https://api.eveonline.com"

// Remote timestamps are UTC without a zone designator.
const timeLayout = "2006-01-02 15:04:05"

// Codes synthesized for faults that never reach the XML error element.
const (
	codeUnparseable = 0
	codeTimeout     = 28
)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// Client implements the driven.EveAPI port over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a Client with an in-memory HTTP cache honoring the
// remote Cache-Control headers.
func NewClient(baseURL string, timeout time.Duration) *Client {
	transport := httpcache.NewMemoryCacheTransport()
	return NewClientWithHTTPClient(&http.Client{Transport: transport, Timeout: timeout}, baseURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// FetchAccountInfo reads the key's access mask, type and characters.
func (c *Client) FetchAccountInfo(ctx context.Context, keyID int64, vCode string) (*model.AccountInfo, error) {
	var doc struct {
		envelope
		Result struct {
			Key struct {
				AccessMask int64  `xml:"accessMask,attr"`
				Type       string `xml:"type,attr"`
				Expires    string `xml:"expires,attr"`
				Rows       []struct {
					CharacterID     int64  `xml:"characterID,attr"`
					CharacterName   string `xml:"characterName,attr"`
					CorporationID   int64  `xml:"corporationID,attr"`
					CorporationName string `xml:"corporationName,attr"`
				} `xml:"rowset>row"`
			} `xml:"key"`
		} `xml:"result"`
	}

	if err := c.call(ctx, "/account/APIKeyInfo.xml.aspx", credentials(keyID, vCode), &doc, &doc.envelope); err != nil {
		return nil, fmt.Errorf("fetch account info for key %d: %w", keyID, err)
	}

	key := doc.Result.Key
	info := &model.AccountInfo{
		AccessMask: key.AccessMask,
		Type:       model.KeyType(key.Type),
		Expires:    parseTime(key.Expires),
		Characters: make([]model.KeyCharacter, 0, len(key.Rows)),
	}
	for _, r := range key.Rows {
		info.Characters = append(info.Characters, model.KeyCharacter{
			CharacterID:     r.CharacterID,
			CharacterName:   r.CharacterName,
			CorporationID:   r.CorporationID,
			CorporationName: r.CorporationName,
		})
	}
	return info, nil
}

// FetchKillLog reads the recent kills visible to characterID. Corporation
// scope reads the kill log of the character's corporation.
func (c *Client) FetchKillLog(ctx context.Context, keyID int64, vCode string, characterID int64, scope model.KillLogScope) (*model.KillLog, error) {
	var doc struct {
		envelope
		Kills []killRow `xml:"result>rowset>row"`
	}

	params := credentials(keyID, vCode)
	params.Set("characterID", strconv.FormatInt(characterID, 10))

	path := "/" + string(scope) + "/KillLog.xml.aspx"
	if err := c.call(ctx, path, params, &doc, &doc.envelope); err != nil {
		return nil, fmt.Errorf("fetch %s kill log for character %d: %w", scope, characterID, err)
	}

	killLog := &model.KillLog{
		Kills:       make([]model.Kill, 0, len(doc.Kills)),
		CachedUntil: parseTime(doc.CachedUntil),
	}
	for _, row := range doc.Kills {
		killLog.Kills = append(killLog.Kills, row.toModel())
	}
	return killLog, nil
}

// envelope holds the fields common to every response document.
type envelope struct {
	Error *struct {
		Code    int    `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
	CachedUntil string `xml:"cachedUntil"`
}

// remoteError converts an error element to a RemoteError, or returns nil.
func (e *envelope) remoteError() *driven.RemoteError {
	if e.Error == nil {
		return nil
	}
	return &driven.RemoteError{
		Code:        e.Error.Code,
		Message:     strings.TrimSpace(e.Error.Message),
		CachedUntil: parseTime(e.CachedUntil),
	}
}

// call issues the request and decodes the body into doc. Every remote fault
// is returned as a *driven.RemoteError so callers can classify it.
func (c *Client) call(ctx context.Context, path string, params url.Values, doc any, env *envelope) error {
	// GET so the response cache can serve repeats until cachedUntil.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isTimeout(err) {
			return &driven.RemoteError{Code: codeTimeout, Message: err.Error()}
		}
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if isTimeout(err) {
			return &driven.RemoteError{Code: codeTimeout, Message: err.Error()}
		}
		return fmt.Errorf("reading response: %w", err)
	}

	decodeErr := xml.Unmarshal(body, doc)

	// An error element takes precedence over the HTTP status; the API sends
	// both for most faults.
	if decodeErr == nil {
		if remote := env.remoteError(); remote != nil {
			return remote
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &driven.RemoteError{
			Code:        resp.StatusCode,
			Message:     http.StatusText(resp.StatusCode),
			CachedUntil: parseTime(env.CachedUntil),
		}
	}

	if decodeErr != nil {
		slog.Debug("unparseable api response", "path", path, "status", resp.StatusCode, "error", decodeErr)
		return &driven.RemoteError{Code: codeUnparseable, Message: "unparseable response: " + decodeErr.Error()}
	}
	return nil
}

func credentials(keyID int64, vCode string) url.Values {
	return url.Values{
		"keyID": {strconv.FormatInt(keyID, 10)},
		"vCode": {vCode},
	}
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

// parseTime returns the zero time for empty or malformed values.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
