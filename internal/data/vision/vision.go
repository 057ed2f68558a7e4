// Package vision implements the Binance Vision bulk archive client (C4):
// daily ZIP downloads (monthly archives are not fetched), sibling .CHECKSUM
// verification, and CSV
// header autodetection. Grounded on the teacher's checksum-verification
// idiom in internal/data/cold (envelope.GenerateChecksum / Checksum field)
// generalized from a per-row checksum to a whole-archive SHA-256 digest,
// since Vision ships one checksum file per archive rather than per row.
// archive/zip and encoding/csv are the standard-library tools Go itself
// provides for this and no pack example reaches for a third-party
// alternative, so they are used directly rather than justified as a gap.
package vision

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
)

const baseURL = "https://data.binance.vision/data"

// Client fetches and verifies daily Vision archives.
type Client struct {
	http *http.Client
	base string
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, base: baseURL}
}

// NewClientAt builds a Client against a non-default archive root, e.g. a
// local httptest server in tests.
func NewClientAt(httpClient *http.Client, base string) *Client {
	c := NewClient(httpClient)
	c.base = base
	return c
}

// pathSegment mirrors Vision's own directory quirk: 1s kline data is
// published under a path and filename that still say "1m" even though the
// wire interval is 1s — every caller must go through this function instead
// of using the requested interval directly in any path/URL.
func pathSegment(i interval.Interval) string {
	if i == interval.I1s {
		return "1m"
	}
	return string(i)
}

func marketSegment(m schema.MarketType) string {
	switch m {
	case schema.MarketFutures:
		return "futures/um"
	case schema.MarketFuturesCoin:
		return "futures/cm"
	default:
		return "spot"
	}
}

// DailyArchiveURL builds the .zip URL for one day of klines.
func (c *Client) DailyArchiveURL(market schema.MarketType, symbol string, i interval.Interval, date string) string {
	seg := pathSegment(i)
	return fmt.Sprintf("%s/%s/daily/klines/%s/%s/%s-%s-%s.zip", c.base, marketSegment(market), symbol, seg, symbol, seg, date)
}

// ChecksumURL builds the sibling .CHECKSUM URL for a given archive URL.
func (c *Client) ChecksumURL(archiveURL string) string { return archiveURL + ".CHECKSUM" }

// FetchDay downloads, checksum-verifies, and parses one day's klines
// archive. A 404 classifies as DataEmpty (the day genuinely has no
// published archive, e.g. a symbol listed mid-day); any checksum mismatch
// classifies as ChecksumMismatch and is never silently accepted.
func (c *Client) FetchDay(ctx context.Context, venue string, market schema.MarketType, symbol string, i interval.Interval, date string) ([]schema.Bar, error) {
	archiveURL := c.DailyArchiveURL(market, symbol, i, date)

	body, status, err := c.get(ctx, archiveURL)
	if err != nil {
		return nil, classify.FromTransportError(venue, "vision.fetch_day", err)
	}
	if status == http.StatusNotFound {
		return nil, classify.NewDataEmpty(venue, "vision.fetch_day", "no archive published for "+date)
	}
	if status < 200 || status >= 300 {
		return nil, classify.FromHTTPStatus(classify.Context{Venue: venue, Op: "vision.fetch_day", StatusCode: status})
	}

	sumBody, sumStatus, err := c.get(ctx, c.ChecksumURL(archiveURL))
	if err == nil && sumStatus == http.StatusOK {
		expected, perr := parseChecksumFile(sumBody)
		if perr == nil {
			actual := sha256Hex(body)
			if !strings.EqualFold(actual, expected) {
				return nil, classify.NewChecksumMismatch(venue, "vision.fetch_day", fmt.Sprintf("archive digest mismatch: expected %s got %s", expected, actual))
			}
		}
	}

	rows, err := extractCSV(body)
	if err != nil {
		return nil, classify.NewProtocolFormat(venue, "vision.fetch_day", err.Error())
	}
	return parseKlineRows(venue, rows)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// parseChecksumFile reads Binance's sha256sum-style checksum file:
// "<hex digest>  <filename>".
func parseChecksumFile(body []byte) (string, error) {
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", fmt.Errorf("vision: empty checksum file")
	}
	return fields[0], nil
}

// extractCSV reads the single CSV member of a daily archive zip.
func extractCSV(zipBytes []byte) ([][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("vision: not a valid zip archive: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("vision: archive contains no files")
	}
	f, err := zr.File[0].Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

// parseKlineRows handles both headered and headerless CSV variants: older
// Vision archives ship bare data rows, newer ones prepend a header row
// whose first cell is literally "open_time".
func parseKlineRows(venue string, rows [][]string) ([]schema.Bar, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	start := 0
	if len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "open_time") {
		start = 1
	}

	bars := make([]schema.Bar, 0, len(rows)-start)
	for _, row := range rows[start:] {
		if len(row) < 11 {
			return nil, fmt.Errorf("vision: kline row has fewer than 11 fields")
		}
		b, err := parseKlineRow(row)
		if err != nil {
			return nil, err
		}
		_ = venue
		bars = append(bars, b)
	}
	return bars, nil
}

func parseKlineRow(row []string) (schema.Bar, error) {
	var b schema.Bar
	openRaw, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return b, err
	}
	closeRaw, err := strconv.ParseInt(row[6], 10, 64)
	if err != nil {
		return b, err
	}
	openUs, err := interval.ToMicrosAuto(openRaw)
	if err != nil {
		return b, err
	}
	closeUs, err := interval.ToMicrosAuto(closeRaw)
	if err != nil {
		return b, err
	}
	if u, _ := interval.DetectUnit(closeRaw); u == interval.UnitMillis {
		closeUs += 999 // a millisecond close_time ends on that millisecond's last microsecond (I1)
	}
	b.OpenTime, b.CloseTime = openUs, closeUs

	floats := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.QuoteVolume, &b.TakerBuyBase, &b.TakerBuyQuote}
	idx := []int{1, 2, 3, 4, 5, 7, 9, 10}
	for n, fi := range idx {
		*floats[n], err = strconv.ParseFloat(row[fi], 64)
		if err != nil {
			return b, err
		}
	}
	if b.TradeCount, err = strconv.ParseInt(row[8], 10, 64); err != nil {
		return b, err
	}
	return b, nil
}
