package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"WatchSentinel/internal/model"
)

const sinaBaseURL = "https://hq.sinajs.cn"

var shanghai = time.FixedZone("CST", 8*3600)

// SinaSource implements Source using the Sina Finance batch quote endpoint.
type SinaSource struct {
	BaseURL string
	Client  *http.Client
}

// NewSinaSource creates a Sina source with optional proxy support.
func NewSinaSource(proxyURL string, timeout time.Duration) *SinaSource {
	return &SinaSource{
		BaseURL: sinaBaseURL,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (s *SinaSource) Name() string { return "sina" }

// FetchQuotes requests all codes in one call. Codes the endpoint returns empty
// are left out of the result.
func (s *SinaSource) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/list=%s", s.BaseURL, strings.Join(codes, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sina fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sina read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sina: status %d", resp.StatusCode)
	}
	utf8Body, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("sina decode gbk: %w", err)
	}
	return parseSinaBody(string(utf8Body)), nil
}

// parseSinaBody parses lines of the form
//
//	var hq_str_sh600519="name,open,prevClose,price,high,low,...,date,time,...";
func parseSinaBody(body string) []model.Quote {
	var quotes []model.Quote
	for _, line := range strings.Split(body, "\n") {
		q, ok := parseSinaLine(strings.TrimSpace(line))
		if ok {
			quotes = append(quotes, q)
		}
	}
	return quotes
}

func parseSinaLine(line string) (model.Quote, bool) {
	const prefix = "var hq_str_"
	if !strings.HasPrefix(line, prefix) {
		return model.Quote{}, false
	}
	eq := strings.Index(line, "=")
	if eq < 0 {
		return model.Quote{}, false
	}
	code := line[len(prefix):eq]
	parts := strings.Split(line, "\"")
	if len(parts) < 2 || parts[1] == "" {
		return model.Quote{}, false
	}
	values := strings.Split(parts[1], ",")
	if len(values) < 32 {
		return model.Quote{}, false
	}

	prevClose, _ := strconv.ParseFloat(values[2], 64)
	price, _ := strconv.ParseFloat(values[3], 64)
	volume, _ := strconv.ParseFloat(values[8], 64)
	amount, _ := strconv.ParseFloat(values[9], 64)
	if price == 0 {
		// Suspended or pre-open: the endpoint reports 0 until the first trade.
		price = prevClose
	}
	change, pct := changeOf(price, prevClose)

	ts, err := time.ParseInLocation("2006-01-02 15:04:05", values[30]+" "+values[31], shanghai)
	if err != nil {
		ts = time.Now()
	}

	return model.Quote{
		Code:          code,
		Name:          strings.TrimSpace(strings.ReplaceAll(values[0], "XD", "")),
		Price:         price,
		PrevClose:     prevClose,
		Change:        change,
		ChangePercent: pct,
		Volume:        volume,
		Amount:        amount,
		Timestamp:     ts,
	}, true
}
