package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSentenceTail_KeepsNewest(t *testing.T) {
	tail := NewSentenceTail(2)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, l := range []string{"$GPGGA,1*00", "", "$GPRMC,2*00\r\n", "$GPGSV,3*00"} {
		if err := tail.WriteLine(now, l); err != nil {
			t.Fatalf("WriteLine(%q) error: %v", l, err)
		}
	}

	entries, dropped := tail.Snapshot(0)
	if dropped != 1 {
		t.Fatalf("dropped=%d want 1", dropped)
	}
	if len(entries) != 2 || entries[0].Sentence != "$GPRMC,2*00" || entries[1].Sentence != "$GPGSV,3*00" {
		t.Fatalf("entries=%+v", entries)
	}
	if entries[0].AtUTC != "2024-03-01T12:00:00Z" {
		t.Fatalf("at=%q", entries[0].AtUTC)
	}

	if entries, _ := tail.Snapshot(1); len(entries) != 1 || entries[0].Sentence != "$GPGSV,3*00" {
		t.Fatalf("Snapshot(1)=%+v", entries)
	}
}

func TestSentenceTail_Handler(t *testing.T) {
	tail := NewSentenceTail(10)
	_ = tail.WriteLine(time.Now(), "$GPGGA,1*00")
	_ = tail.WriteLine(time.Now(), "$GPRMC,2*00")

	ts := httptest.NewServer(Handler(NewStatus(), fixSource(), Options{Tail: tail}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/nmea?tail=1")
	if err != nil {
		t.Fatalf("get tail: %v", err)
	}
	var out TailResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	resp.Body.Close()
	if len(out.Sentences) != 1 || out.Sentences[0].Sentence != "$GPRMC,2*00" {
		t.Fatalf("sentences=%+v", out.Sentences)
	}

	resp, err = http.Get(ts.URL + "/api/nmea?format=text")
	if err != nil {
		t.Fatalf("get tail text: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "$GPGGA,1*00\n$GPRMC,2*00\n" {
		t.Fatalf("text body=%q", body)
	}

	for _, q := range []string{"tail=0", "tail=x", "tail=5001"} {
		resp, err := http.Get(ts.URL + "/api/nmea?" + q)
		if err != nil {
			t.Fatalf("get %s: %v", q, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s status=%d want 400", q, resp.StatusCode)
		}
	}
}
