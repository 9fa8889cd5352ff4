package main

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DisplaySurface is the external collaborator every session talks to: a
// display accepting a rendered image and a short title per button instance,
// plus a logging sink and a way to open a detached view.
type DisplaySurface interface {
	SetImage(context string, img image.Image) error
	SetTitle(context string, title string) error
	OpenURL(rawURL string) error
	Log(message string)
}

// deckEvent is the envelope of every inbound host message.
type deckEvent struct {
	Action  string          `json:"action"`
	Event   string          `json:"event"`
	Context string          `json:"context"`
	Device  string          `json:"device"`
	Payload json.RawMessage `json:"payload"`
}

// settingsPayload is the payload shape of willAppear / didReceiveSettings.
type settingsPayload struct {
	Settings map[string]any `json:"settings"`
}

// inspectorPayload is the payload shape of sendToPlugin commands.
type inspectorPayload struct {
	Command string `json:"command"`
}

func (e deckEvent) settings() map[string]any {
	var p settingsPayload
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("bad settings payload for %s: %v", e.Context, err)
		}
	}
	return p.Settings
}

func (e deckEvent) command() string {
	var p inspectorPayload
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return ""
		}
	}
	return p.Command
}

// deckClient speaks the button host's JSON-over-websocket protocol. Reads
// run in a dedicated goroutine feeding Events; writes are serialized with a
// mutex so sessions can call it concurrently.
type deckClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	Events chan deckEvent
}

// connectDeck dials the host on localhost and performs the registration
// handshake with the UUID the host assigned at launch.
func connectDeck(port int, pluginUUID, registerEvent string) (*deckClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d", port), nil)
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}

	d := &deckClient{
		conn:   conn,
		Events: make(chan deckEvent, 16),
	}
	if err := d.send(map[string]any{"event": registerEvent, "uuid": pluginUUID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register: %w", err)
	}

	go d.readLoop()
	return d, nil
}

func (d *deckClient) readLoop() {
	defer close(d.Events)
	for {
		_, raw, err := d.conn.ReadMessage()
		if err != nil {
			log.Printf("host connection closed: %v", err)
			return
		}
		var ev deckEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("unparseable host event: %v", err)
			continue
		}
		d.Events <- ev
	}
}

func (d *deckClient) send(v any) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.conn.WriteJSON(v)
}

func (d *deckClient) SetImage(context string, img image.Image) error {
	uri, err := encodeImageDataURI(img)
	if err != nil {
		return err
	}
	return d.send(map[string]any{
		"event":   "setImage",
		"context": context,
		"payload": map[string]any{"image": uri, "target": 0},
	})
}

func (d *deckClient) SetTitle(context string, title string) error {
	return d.send(map[string]any{
		"event":   "setTitle",
		"context": context,
		"payload": map[string]any{"title": title, "target": 0},
	})
}

func (d *deckClient) OpenURL(rawURL string) error {
	return d.send(map[string]any{
		"event":   "openUrl",
		"payload": map[string]any{"url": rawURL},
	})
}

func (d *deckClient) Log(message string) {
	if err := d.send(map[string]any{
		"event":   "logMessage",
		"payload": map[string]any{"message": message},
	}); err != nil {
		log.Printf("logMessage failed: %v", err)
	}
}

func (d *deckClient) Close() error {
	return d.conn.Close()
}
