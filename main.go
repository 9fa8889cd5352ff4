package main

import (
	"flag"
	"log"
	"sync"
)

const (
	ACTION_SINGLE = "com.unreaddeck.unread"
	ACTION_ROTATE = "com.unreaddeck.rotate"
)

// sessions tracks one Session per visible button instance, keyed by the
// opaque context the host assigns. Only the dispatch loop mutates the map;
// the mutex covers the debug server's reads.
var (
	sessionsMu sync.RWMutex
	sessions   = map[string]*Session{}
)

func modeForAction(action string) string {
	if action == ACTION_ROTATE {
		return modeRotate
	}
	return modeSingle
}

func dispatch(deck *deckClient) {
	for ev := range deck.Events {
		switch ev.Event {
		case "willAppear":
			sessionsMu.Lock()
			if old, ok := sessions[ev.Context]; ok {
				old.Close()
			}
			sessions[ev.Context] = newSession(ev.Context, modeForAction(ev.Action), deck, ev.settings())
			sessionsMu.Unlock()

		case "willDisappear":
			sessionsMu.Lock()
			if s, ok := sessions[ev.Context]; ok {
				s.Close()
				delete(sessions, ev.Context)
			}
			sessionsMu.Unlock()
			dropFrame(ev.Context)

		case "didReceiveSettings":
			if s := lookupSession(ev.Context); s != nil {
				s.UpdateSettings(ev.settings())
			}

		case "keyDown":
			if s := lookupSession(ev.Context); s != nil {
				s.KeyDown()
			}

		case "sendToPlugin":
			if s := lookupSession(ev.Context); s != nil {
				s.Inspector(ev.command())
			}
		}
	}
}

func lookupSession(context string) *Session {
	sessionsMu.RLock()
	defer sessionsMu.RUnlock()
	return sessions[context]
}

func main() {
	var (
		port          = flag.Int("port", 0, "websocket port assigned by the host")
		pluginUUID    = flag.String("pluginUUID", "", "plugin identifier assigned by the host")
		registerEvent = flag.String("registerEvent", "", "registration event name")
		info          = flag.String("info", "", "host environment info (unused)")
		debugAddr     = flag.String("debug", "", "debug server listen address, e.g. :8081")
	)
	flag.Parse()
	_ = *info

	if *port == 0 || *pluginUUID == "" || *registerEvent == "" {
		log.Fatal("missing required -port / -pluginUUID / -registerEvent flags")
	}

	deck, err := connectDeck(*port, *pluginUUID, *registerEvent)
	if err != nil {
		log.Fatalf("Could not connect to host: %v", err)
	}
	defer deck.Close()
	log.Printf("Registered with host on port %d", *port)

	if *debugAddr != "" {
		go httpServer(*debugAddr)
	}

	// The event stream ends when the host closes the socket; tear every
	// session down before exiting.
	dispatch(deck)

	sessionsMu.Lock()
	for ctx, s := range sessions {
		s.Close()
		delete(sessions, ctx)
	}
	sessionsMu.Unlock()
	log.Println("Host connection lost, exiting")
}
