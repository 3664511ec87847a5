// fedisync - a federated social network synchronization daemon.
// Copyright (C) 2026 Fedisync contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pumpio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/origins"
)

var (
	ErrRequestFailed      = errors.New("failed to send request")
	ErrResponseReadFailed = errors.New("failed to read response body")
	ErrBadResponse        = errors.New("remote returned malformed response")
	ErrRoutineUnsupported = errors.New("API routine not supported by origin")
)

// ConnectionError is the error kind raised for unreachable or malformed
// remote responses. A fetch that failed is distinguishable from a fetch
// that returned zero items: only the former produces a ConnectionError.
type ConnectionError struct {
	URL   string
	Cause string

	wrapped error
}

func newConnectionError(url, cause string, wrapped error) *ConnectionError {
	return &ConnectionError{URL: url, Cause: cause, wrapped: wrapped}
}

func (ce *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s (%s)", ce.Cause, ce.URL)
}

func (ce *ConnectionError) Unwrap() error {
	return ce.wrapped
}

// Client issues API calls against one origin on behalf of one account.
type Client struct {
	Logger zerolog.Logger

	http    *http.Client
	origin  *origins.Origin
	account *accounts.Account
}

func NewClient(origin *origins.Origin, account *accounts.Account, logger zerolog.Logger) *Client {
	return &Client{
		Logger: logger.With().
			Str("component", "pumpio").
			Str("origin", origin.Name).
			Logger(),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		origin:  origin,
		account: account,
	}
}

// Supports reports whether the client's origin implements the routine.
func (c *Client) Supports(routine origins.Routine) bool {
	return c.origin.Supports(routine)
}

// apiPath maps a routine to its pump.io endpoint for the given nickname.
func apiPath(routine origins.Routine, nickname string) (string, bool) {
	switch routine {
	case origins.RoutineHomeTimeline:
		return fmt.Sprintf("/api/user/%s/inbox", nickname), true
	case origins.RoutineMentionsTimeline:
		return fmt.Sprintf("/api/user/%s/inbox/minor", nickname), true
	case origins.RoutineDirectTimeline:
		return fmt.Sprintf("/api/user/%s/inbox/direct", nickname), true
	case origins.RoutineUserTimeline:
		return fmt.Sprintf("/api/user/%s/feed", nickname), true
	case origins.RoutineGetFriends, origins.RoutineGetFriendsIDs:
		return fmt.Sprintf("/api/user/%s/following", nickname), true
	default:
		return "", false
	}
}

// timelineQuery is the query-string shape of timeline fetches.
type timelineQuery struct {
	Since string `url:"since,omitempty"`
	Count int    `url:"count,omitempty"`
}

func (c *Client) get(ctx context.Context, path string, params any) ([]byte, error) {
	reqURL := c.origin.BaseURL() + path
	if params != nil {
		values, err := query.Values(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query: %w", err)
		}
		if encoded := values.Encode(); encoded != "" {
			reqURL += "?" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, newConnectionError(reqURL, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.account != nil && c.account.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.account.AccessToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	dur := time.Since(start)
	if err != nil {
		c.Logger.Err(err).Str("url", reqURL).Dur("duration", dur).Msg("Request failed")
		return nil, newConnectionError(reqURL, "request failed", fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newConnectionError(reqURL, "failed to read response", fmt.Errorf("%w: %w", ErrResponseReadFailed, err))
	}
	if resp.StatusCode >= 400 {
		c.Logger.Error().
			Str("url", reqURL).
			Int("status", resp.StatusCode).
			Dur("duration", dur).
			Msg("Request returned error status")
		return nil, newConnectionError(reqURL, fmt.Sprintf("HTTP %d", resp.StatusCode), ErrRequestFailed)
	}
	c.Logger.Debug().
		Str("url", reqURL).
		Int("status", resp.StatusCode).
		Dur("duration", dur).
		Msg("Request successful")
	return body, nil
}
