package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// day returns a 14:30 UTC timestamp, the time Yahoo stamps daily bars with
func day(d int) int64 {
	return time.Date(2024, 1, d, 14, 30, 0, 0, time.UTC).Unix()
}

func chartPayload(timestamps []int64, adj []string, closes []string) string {
	ts := make([]string, len(timestamps))
	for i, t := range timestamps {
		ts[i] = fmt.Sprint(t)
	}
	indicators := fmt.Sprintf(`"quote":[{"close":[%s]}]`, strings.Join(closes, ","))
	if adj != nil {
		indicators += fmt.Sprintf(`,"adjclose":[{"adjclose":[%s]}]`, strings.Join(adj, ","))
	}
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"currency":"USD"},"timestamp":[%s],"indicators":{%s}}],"error":null}}`,
		strings.Join(ts, ","), indicators)
}

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *YahooFinanceService {
	t.Helper()
	resetBreakers(t)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewYahooFinanceService(server.URL)
	svc.retryConfig = RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return svc
}

func TestYahooFinanceService_FetchPrices(t *testing.T) {
	payloads := map[string]string{
		"AAA": chartPayload([]int64{day(2), day(3), day(4)}, []string{"100", "110", "99"}, []string{"101", "111", "100"}),
		"BBB": chartPayload([]int64{day(2), day(3), day(4)}, nil, []string{"50", "45", "60"}),
	}

	var userAgent string
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("interval = %q", r.URL.Query().Get("interval"))
		}
		payload, ok := payloads[symbol]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
			return
		}
		_, _ = w.Write([]byte(payload))
	})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	table, err := svc.FetchPrices(context.Background(), []string{"AAA", "ZZZZ", "BBB"}, start, end)
	if err != nil {
		t.Fatalf("FetchPrices() error = %v", err)
	}

	if userAgent == "" {
		t.Error("expected a User-Agent header")
	}
	if len(table.Tickers) != 2 || table.Tickers[0] != "AAA" || table.Tickers[1] != "BBB" {
		t.Fatalf("tickers = %v, want [AAA BBB]", table.Tickers)
	}
	if table.Len() != 3 {
		t.Fatalf("rows = %d, want 3", table.Len())
	}
	// adjusted close preferred over close
	if got := table.Column("AAA"); got[0] != 100 || got[2] != 99 {
		t.Errorf("AAA closes = %v", got)
	}
	if got := table.Column("BBB"); got[1] != 45 {
		t.Errorf("BBB closes = %v", got)
	}
	if !table.Dates[0].Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first date = %v", table.Dates[0])
	}
}

func TestYahooFinanceService_FetchPrices_NoData(t *testing.T) {
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found"}}}`))
	})

	table, err := svc.FetchPrices(context.Background(), []string{"ZZZZ"}, time.Now().AddDate(-1, 0, 0), time.Now())
	if err != nil {
		t.Fatalf("FetchPrices() error = %v, want empty table", err)
	}
	if !table.IsEmpty() {
		t.Errorf("expected empty table, got %+v", table)
	}
}

func TestYahooFinanceService_NullClosesSkipped(t *testing.T) {
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartPayload([]int64{day(2), day(3), day(4)}, nil, []string{"10", "null", "12"})))
	})

	series, err := svc.GetHistory(context.Background(), "AAA", time.Now(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Points) != 2 {
		t.Errorf("points = %d, want 2", len(series.Points))
	}
}

func TestYahooFinanceService_MissingCloseField(t *testing.T) {
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704205800],"indicators":{"quote":[{"open":[10]}]}}],"error":null}}`))
	})

	table, err := svc.FetchPrices(context.Background(), []string{"AAA"}, time.Now(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !table.IsEmpty() {
		t.Error("a response without closes should produce an empty table")
	}
}

func TestYahooFinanceService_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(chartPayload([]int64{day(2)}, nil, []string{"10"})))
	})

	series, err := svc.GetHistory(context.Background(), "AAA", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(series.Points) != 1 {
		t.Errorf("points = %d", len(series.Points))
	}
}

func TestYahooFinanceService_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := svc.GetHistory(context.Background(), "ZZZZ", time.Now(), time.Now()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestYahooFinanceService_ContextCancelled(t *testing.T) {
	svc := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.FetchPrices(ctx, []string{"AAA"}, time.Now(), time.Now()); err == nil {
		t.Error("expected context error")
	}
}

func TestParseChart_DatesIgnoreLocalZone(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC+12", 12*60*60)
	defer func() { time.Local = local }()

	body := chartPayload([]int64{day(2), day(3)}, nil, []string{"10", "11"})
	series, err := parseChart("AAA", []byte(body))
	if err != nil {
		t.Fatalf("parseChart() error = %v", err)
	}

	want := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	if len(series.Points) != len(want) {
		t.Fatalf("points = %d, want %d", len(series.Points), len(want))
	}
	for i, p := range series.Points {
		if !p.Date.Equal(want[i]) {
			t.Errorf("point %d date = %v, want %v", i, p.Date, want[i])
		}
	}
}
