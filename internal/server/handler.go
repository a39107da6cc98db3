package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dpavlenko/cryptoquest/internal/common"
	"github.com/dpavlenko/cryptoquest/internal/game"
	"github.com/dpavlenko/cryptoquest/internal/identity"
	"github.com/dpavlenko/cryptoquest/internal/logging"
	"github.com/dpavlenko/cryptoquest/internal/server/config"
)

// Response status lines, Gemini style: 20 is success, 59 is a refusal.
const (
	statusOK   = "20 text/gemini\r\n"
	statusBad  = "59 Not permitted\r\n"
	statusLost = "59 Not found\r\n"
)

// Handler maps a single request line onto game and identity operations.
// The fronting transport supplies the client-certificate fingerprint (when
// one was presented) in the "fingerprint" query parameter; the handler
// never reads ambient process state.
type Handler struct {
	engine   *game.Engine
	resolver *identity.Resolver
	cfg      *config.Config
	logger   logging.Logger
}

func NewHandler(e *game.Engine, r *identity.Resolver, cfg *config.Config, l logging.Logger) *Handler {
	return &Handler{engine: e, resolver: r, cfg: cfg, logger: l.With("module", "handler")}
}

// Handle parses a request of the form "/path?query" and returns the full
// response including the status line.
func (h *Handler) Handle(ctx context.Context, rawRequest string) string {
	u, err := url.Parse(strings.TrimSpace(rawRequest))
	if err != nil {
		return statusBad + "# Malformed request\n"
	}
	q := u.Query()

	fingerprint := q.Get("fingerprint")
	id, err := h.resolver.Resolve(ctx, fingerprint, q.Get("user"), fingerprint != "")
	if err != nil {
		return h.failure(ctx, err)
	}

	switch u.Path {
	case "", "/":
		return h.index(id)
	case "/register":
		return h.register(ctx, fingerprint, q.Get("name"))
	}

	userID := h.actingUser(id)

	switch u.Path {
	case "/stage":
		return h.stage(ctx, userID)
	case "/submit":
		return h.submit(ctx, userID, q.Get("puzzle"), q.Get("answer"))
	case "/secret_link":
		return h.secretLink(ctx, userID)
	case "/rsa_start":
		return h.rsaStart(ctx, userID)
	case "/rsa_final":
		return h.rsaFinal(ctx, userID)
	case "/rsa_submit":
		return h.rsaSubmit(ctx, userID, q.Get("proof"))
	default:
		return statusLost + "# Unknown page\n"
	}
}

// actingUser picks the durable username when the player is certified, the
// supplied name when anonymous, and the configured default otherwise.
func (h *Handler) actingUser(id identity.Identity) string {
	if id.Username != "" {
		return id.Username
	}
	return h.cfg.DefaultName
}

func (h *Handler) index(id identity.Identity) string {
	var b strings.Builder
	b.WriteString(statusOK)
	b.WriteString("# CryptoQuest\n")
	switch id.Kind {
	case identity.Certified:
		fmt.Fprintf(&b, "Welcome back, %s.\n", id.Username)
	case identity.CertUnlinked:
		b.WriteString("Certificate detected. Use /register?name=YOUR_NAME to link it.\n")
	case identity.Anonymous:
		fmt.Fprintf(&b, "Hello %s! Link a certificate to keep your progress.\n", id.Username)
	default:
		b.WriteString("Hello, stranger. Supply ?user=YOUR_NAME or present a certificate.\n")
	}
	b.WriteString("=> /stage Where am I?\n")
	b.WriteString("=> /submit Submit an answer\n")
	b.WriteString("=> /secret_link Reveal the secret link\n")
	b.WriteString("=> /rsa_start Final riddle\n")
	return b.String()
}

func (h *Handler) register(ctx context.Context, fingerprint, name string) string {
	if fingerprint == "" {
		return statusBad + "# No certificate presented\n"
	}
	id, err := h.resolver.Link(ctx, fingerprint, name)
	if err != nil {
		return h.failure(ctx, err)
	}
	return statusOK + fmt.Sprintf("# Identity created\nWelcome, %s.\n", id.Username)
}

func (h *Handler) stage(ctx context.Context, userID string) string {
	info, err := h.engine.ViewStage(ctx, userID)
	if err != nil {
		return h.failure(ctx, err)
	}
	return statusOK + fmt.Sprintf("# Stage: %s (%d%%)\n%s\n", info.Stage, info.Progress, info.Hint)
}

func (h *Handler) submit(ctx context.Context, userID, puzzle, answer string) string {
	res, err := h.engine.SubmitAnswer(ctx, userID, puzzle, answer)
	if err != nil {
		return h.failure(ctx, err)
	}
	if !res.Accepted {
		return statusBad + "# Wrong answer\nTry again.\n"
	}
	if res.AlreadySolved {
		return statusOK + "# Already solved\nYour key is in your inventory.\n"
	}
	return statusOK + "# Correct!\nYou received an AES key. Use it at /secret_link\n"
}

func (h *Handler) secretLink(ctx context.Context, userID string) string {
	rev, err := h.engine.RevealSecret(ctx, userID)
	if err != nil {
		return h.failure(ctx, err)
	}
	if rev.Unlocked {
		return statusOK + fmt.Sprintf("# Secret link\n%s\n", rev.Cleartext)
	}
	return statusOK + fmt.Sprintf("# Secret link (encrypted)\nCiphertext: %s\nSolve the cave riddle to earn the key.\n", rev.Ciphertext)
}

func (h *Handler) rsaStart(ctx context.Context, userID string) string {
	issue, err := h.engine.IssueFinalKeypair(ctx, userID)
	if err != nil {
		return h.failure(ctx, err)
	}
	if issue.AlreadyIssued {
		return statusOK + "# Keypair already issued\nDecrypt the final message with the private key you saved.\n"
	}
	return statusOK + fmt.Sprintf("# Final riddle\nSave this private key; the server keeps no copy.\n\n%s\n", issue.PrivateKeyPEM)
}

func (h *Handler) rsaFinal(ctx context.Context, userID string) string {
	ciphertext, err := h.engine.FinalChallenge(ctx, userID)
	if err != nil {
		return h.failure(ctx, err)
	}
	return statusOK + fmt.Sprintf("# Final message (encrypted)\n%s\n", base64.StdEncoding.EncodeToString(ciphertext))
}

func (h *Handler) rsaSubmit(ctx context.Context, userID, proof string) string {
	res, err := h.engine.SubmitFinalProof(ctx, userID, proof)
	if err != nil {
		return h.failure(ctx, err)
	}
	if !res.Accepted {
		return statusBad + fmt.Sprintf("# Rejected\n%s\n", res.Message)
	}
	return statusOK + "# Congratulations!\nYou have finished CryptoQuest.\n"
}

// failure translates errors into protocol responses. Validation and
// conflict outcomes are reported to the player; anything else is logged
// and answered generically so no internal detail or secret leaks.
func (h *Handler) failure(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, common.ErrValidation):
		return statusBad + "# Invalid input\n"
	case errors.Is(err, common.ErrConflict):
		return statusBad + "# Conflict\nThat name or certificate is already taken.\n"
	case errors.Is(err, common.ErrNotFound):
		return statusLost + "# Not found\n"
	default:
		h.logger.Error(ctx, "request failed", "error", err.Error())
		return statusBad + "# Server error\n"
	}
}
