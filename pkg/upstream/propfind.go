package upstream

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	"github.com/reeldav/reeldav/internal/utils"
)

// Multistatus response decoding, the lazy propstat-eliding way.
type multistatus struct {
	Responses []propfindResponse `xml:"response"`
}

type propfindResponse struct {
	Href  string       `xml:"href"`
	Props propfindProp `xml:"propstat"`
}

type propfindProp struct {
	Type *xml.Name `xml:"DAV: prop>resourcetype>collection,omitempty"`
	Size int64     `xml:"DAV: prop>getcontentlength,omitempty"`
}

// propfind runs a depth-1 PROPFIND against reqPath and parses the children.
// Any HTTP or XML failure logs and yields an empty list.
func (c *Client) propfind(ctx context.Context, reqPath string) []Entry {
	ctx, cancel := context.WithTimeout(ctx, propfindTimeout)
	defer cancel()

	url := c.baseURL + reqPath
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", url, nil)
	if err != nil {
		c.logger.Error().Err(err).Str("path", reqPath).Msg("PROPFIND request failed")
		return nil
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Depth", "1")
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", reqPath).Msg("PROPFIND failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Error().Int("status", resp.StatusCode).Str("path", reqPath).Msg("PROPFIND returned unexpected status")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error().Err(err).Str("path", reqPath).Msg("Failed to read PROPFIND body")
		return nil
	}

	return c.parseMultistatus(body, reqPath)
}

func (c *Client) parseMultistatus(body []byte, reqPath string) []Entry {
	var ms multistatus
	decoder := xml.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&ms); err != nil {
		c.logger.Error().Err(err).Msg("Failed to parse multistatus XML")
		return nil
	}

	parent := strings.TrimRight(utils.PathUnescape(reqPath), "/")

	entries := make([]Entry, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		if r.Href == "" {
			continue
		}
		href := strings.TrimRight(r.Href, "/")
		decoded := utils.PathUnescape(href)

		// The response describing the requested collection itself.
		if decoded == parent || decoded == parent+"/" {
			continue
		}

		segments := strings.Split(decoded, "/")
		name := segments[len(segments)-1]

		entries = append(entries, Entry{
			Name:  name,
			Href:  href,
			IsDir: r.Props.Type != nil,
			Size:  r.Props.Size,
		})
	}
	return entries
}
