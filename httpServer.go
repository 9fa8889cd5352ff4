package main

import (
	"bytes"
	"image"
	"image/png"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"github.com/gofiber/fiber/v2"
)

// lastFrames holds the most recent frame written per button context so the
// debug server can mirror what each key currently shows. Written from session
// task loops, read from Fiber handlers.
var (
	frameMutex sync.RWMutex
	lastFrames = map[string]*image.RGBA{}
)

func publishFrame(context string, frame *image.RGBA) {
	frameMutex.Lock()
	lastFrames[context] = frame
	frameMutex.Unlock()
}

func dropFrame(context string) {
	frameMutex.Lock()
	delete(lastFrames, context)
	frameMutex.Unlock()
}

func serveFrame(c *fiber.Ctx) error {
	ctx, err := url.PathUnescape(c.Params("context"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Bad context")
	}

	frameMutex.RLock()
	frame := lastFrames[ctx]
	frameMutex.RUnlock()

	if frame == nil {
		return c.Status(fiber.StatusNotFound).SendString("No frame available")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to encode image")
	}

	c.Set("Content-Type", "image/png")
	c.Set("Content-Length", strconv.Itoa(buf.Len()))
	return c.Send(buf.Bytes())
}

func indexHandler(c *fiber.Ctx) error {
	frameMutex.RLock()
	contexts := make([]string, 0, len(lastFrames))
	for ctx := range lastFrames {
		contexts = append(contexts, ctx)
	}
	frameMutex.RUnlock()

	return c.JSON(fiber.Map{"contexts": contexts})
}

// pingHandler measures round-trip time to a webhook host, for diagnosing
// whether a failing feed is a network problem or a server problem.
func pingHandler(c *fiber.Ctx) error {
	host := c.Query("host")
	if host == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing host")
	}
	rtt, err := pingICMP(host)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"host": host, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"host": host, "rtt_ms": rtt})
}

// pingICMP uses github.com/go-ping/ping to perform an ICMP ping.
func pingICMP(host string) (int64, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return 0, err
	}
	// Unprivileged mode uses UDP and works without root.
	pinger.SetPrivileged(false)
	pinger.Count = 1
	pinger.Timeout = 2 * time.Second

	if err := pinger.Run(); err != nil {
		return 0, err
	}
	stats := pinger.Statistics()
	return int64(stats.AvgRtt / time.Millisecond), nil
}

func newDebugApp() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Routes
	app.Get("/", indexHandler)
	app.Get("/frame/:context", serveFrame)
	app.Get("/ping", pingHandler)

	return app
}

func httpServer(port string) {
	app := newDebugApp()
	log.Println("Starting debug server on", port)
	if err := app.Listen(port); err != nil {
		log.Printf("debug server stopped: %v", err)
	}
}
