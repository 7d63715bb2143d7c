/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

// homePageBody is a minimal, self-contained informational landing page.
// Rendering the game board itself is a client concern, out of scope here.
const homePageBody = `<!DOCTYPE html><html lang="en"><head><title>pusharena</title>%s
<style>body{font-family:sans-serif;max-width:40rem;margin:3rem auto;line-height:1.5;}code{background:#eee;padding:0.1rem 0.3rem;}</style>
</head><body>
<h1>pusharena</h1>
<p>A real-time, turn-based, push-resolution grid game server.</p>
<ul>
<li><code>POST %s/lobby</code> &mdash; create a lobby</li>
<li><code>GET %s/lobby</code> &mdash; list joinable lobbies</li>
<li><code>GET %s/lobby/{id}</code> &mdash; lobby details</li>
<li><code>GET %s/lobby/{id}/qr</code> &mdash; join-code QR code</li>
<li><code>GET %s/lobby/{idOrCode}/join</code> &mdash; WebSocket join/reconnect</li>
</ul>
</body></html>`

func serveHomePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		body := fmt.Sprintf(homePageBody, getFavicon(), cfg.prefix, cfg.prefix, cfg.prefix, cfg.prefix, cfg.prefix)
		_, _ = w.Write([]byte(body))
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
