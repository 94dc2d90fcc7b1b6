// Package epg fetches channel schedules from an HTTP JSON EPG endpoint.
package epg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"live-scheduler/internal/schedule"
)

// ChannelIDPlaceholder is replaced by the (path-escaped) channel id in a URL
// template.
const ChannelIDPlaceholder = "{channel_id}"

// maxConcurrentFetches bounds the number of simultaneous channel requests.
const maxConcurrentFetches = 8

// Client is a schedule.Fetcher backed by one JSON document per channel.
type Client struct {
	urlTemplate string
	httpClient  *http.Client
	log         *slog.Logger
}

// NewClient returns a Client that requests urlTemplate with
// ChannelIDPlaceholder substituted for each channel id. A nil httpClient
// means http.DefaultClient.
func NewClient(urlTemplate string, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	if !strings.Contains(urlTemplate, ChannelIDPlaceholder) {
		return nil, fmt.Errorf("EPG URL template %q has no %s placeholder", urlTemplate, ChannelIDPlaceholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(urlTemplate, ChannelIDPlaceholder, "x")); err != nil {
		return nil, fmt.Errorf("invalid EPG URL template: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{urlTemplate: urlTemplate, httpClient: httpClient, log: log}, nil
}

// channelDocument is the JSON body served for one channel.
type channelDocument struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Programs    []programDocument `json:"programs"`
}

type programDocument struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

// FetchSchedules implements schedule.Fetcher. Channels are requested
// concurrently; the snapshot lists them in the order of channelIDs. Any
// failing channel fails the whole fetch with an error wrapping
// schedule.ErrFetchFailed.
func (c *Client) FetchSchedules(ctx context.Context, channelIDs []string) (schedule.Snapshot, error) {
	channels := make([]schedule.Channel, len(channelIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, id := range channelIDs {
		g.Go(func() error {
			ch, err := c.fetchChannel(gctx, id)
			if err != nil {
				return err
			}
			channels[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return schedule.Snapshot{}, fmt.Errorf("%w: %w", schedule.ErrFetchFailed, err)
	}
	return schedule.Snapshot{Channels: channels}, nil
}

func (c *Client) channelURL(channelID string) string {
	return strings.ReplaceAll(c.urlTemplate, ChannelIDPlaceholder, url.PathEscape(channelID))
}

func (c *Client) fetchChannel(ctx context.Context, channelID string) (schedule.Channel, error) {
	u := c.channelURL(channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return schedule.Channel{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return schedule.Channel{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return schedule.Channel{}, fmt.Errorf("got response %d from %s", res.StatusCode, u)
	}

	var doc channelDocument
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return schedule.Channel{}, fmt.Errorf("failed to decode response body from %s: %w", u, err)
	}
	return c.toChannel(channelID, doc), nil
}

// toChannel converts a decoded document into a schedule.Channel. Programs
// without an id, with unparsable times, or that do not end after they start
// are dropped; the rest are sorted by start time.
func (c *Client) toChannel(channelID string, doc channelDocument) schedule.Channel {
	ch := schedule.Channel{
		ID:          channelID,
		Title:       doc.Title,
		Description: doc.Description,
		Image:       doc.Image,
		Programs:    make([]schedule.Program, 0, len(doc.Programs)),
	}

	dropped := 0
	for _, pd := range doc.Programs {
		p, ok := parseProgram(pd)
		if !ok {
			dropped++
			continue
		}
		ch.Programs = append(ch.Programs, p)
	}
	if dropped > 0 {
		c.log.Debug("dropped invalid programs",
			slog.String("channel_id", channelID),
			slog.Int("dropped", dropped))
	}

	sort.SliceStable(ch.Programs, func(i, j int) bool {
		return ch.Programs[i].StartTime.Before(ch.Programs[j].StartTime)
	})
	return ch
}

func parseProgram(pd programDocument) (schedule.Program, bool) {
	if strings.TrimSpace(pd.ID) == "" {
		return schedule.Program{}, false
	}
	start, err := time.Parse(time.RFC3339, pd.StartTime)
	if err != nil {
		return schedule.Program{}, false
	}
	end, err := time.Parse(time.RFC3339, pd.EndTime)
	if err != nil {
		return schedule.Program{}, false
	}
	if !end.After(start) {
		return schedule.Program{}, false
	}
	return schedule.Program{
		ID:          pd.ID,
		Title:       pd.Title,
		Description: pd.Description,
		Image:       pd.Image,
		StartTime:   start,
		EndTime:     end,
	}, true
}
