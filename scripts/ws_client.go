// Package main runs a demo WebSocket client for corridor events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Seed a corridor via an availability check.
	body := []byte(`{"booking":{"id":"bk_demo_1","pickup":{"postcode":"BS1 4DJ"},"delivery":{"postcode":"M1 1AE"},"itemIds":["sofa_3seat","large_box"]},"urgency":"relaxed"}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/availability", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var avResp struct {
		RouteType  string `json:"route_type"`
		CorridorID string `json:"corridorId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&avResp); err != nil {
		log.Fatal(err)
	}
	if avResp.CorridorID == "" {
		log.Fatal("no corridor seeded; is seedCorridors disabled?")
	}
	log.Printf("Tier: %s, corridor: %s", avResp.RouteType, avResp.CorridorID)

	// Connect WS for corridor events
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/corridors/ws", RawQuery: "corridorId=" + avResp.CorridorID}
	hdr := http.Header{}
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			}
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			b, _ := json.Marshal(m.Data)
			log.Printf("WS <- %s: %s", m.Type, string(b))
		}
	}()

	// Trigger a corridor event with a second matching booking.
	time.Sleep(500 * time.Millisecond)
	body2 := []byte(`{"booking":{"id":"bk_demo_2","pickup":{"postcode":"BS1 6XN"},"delivery":{"postcode":"M1 2WD"},"itemIds":["small_box"]},"urgency":"relaxed"}`)
	req2, _ := http.NewRequest(http.MethodPost, base+"/v1/availability", bytes.NewReader(body2))
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("X-Role", "admin")
	_, _ = http.DefaultClient.Do(req2)

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
