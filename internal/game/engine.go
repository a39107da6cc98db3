// Package game implements the puzzle-progression state machine: per-user
// stage transitions, the inventory of issued secrets, and puzzle
// verification and unlock logic. All state lives in the encrypted store;
// every mutation runs inside a single store transaction.
package game

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dpavlenko/cryptoquest/internal/common"
	"github.com/dpavlenko/cryptoquest/internal/cryptox"
	"github.com/dpavlenko/cryptoquest/internal/logging"
	"github.com/dpavlenko/cryptoquest/internal/storage"
)

// StageInfo is the read-only view of a player's progression.
type StageInfo struct {
	Stage    storage.Stage
	Progress int
	Hint     string
}

// SubmitResult reports the outcome of an answer or proof submission.
type SubmitResult struct {
	Accepted bool
	// AlreadySolved is set when a correct answer arrives after the
	// transition has already happened; nothing is granted twice.
	AlreadySolved bool
	Message       string
}

// Reveal is the response to a secret-link request. The shape is identical
// whether or not the player holds the key, so the response alone does not
// leak which case occurred beyond the Unlocked flag the player already
// knows from their own inventory.
type Reveal struct {
	Unlocked   bool
	Cleartext  string // set only when Unlocked
	Ciphertext string // base64(nonce||ciphertext) under a key the player lacks
}

// KeypairIssue is the outcome of the one-time final keypair issuance.
// PrivateKeyPEM is populated only on the first call; the server keeps no
// copy of it.
type KeypairIssue struct {
	AlreadyIssued bool
	PrivateKeyPEM []byte
}

// Store is the slice of the encrypted store the engine depends on.
// *storage.FileStore satisfies it.
type Store interface {
	GetUser(ctx context.Context, id string) (*storage.UserRecord, error)
	EnsureUser(ctx context.Context, id string) (*storage.UserRecord, error)
	Update(ctx context.Context, fn func(doc *storage.Document) error) error
}

// Engine drives the puzzle state machine on top of the encrypted store.
type Engine struct {
	store        Store
	logger       logging.Logger
	secretURL    string
	finalMessage string
}

// NewEngine constructs an Engine. secretURL is the logical secret revealed
// by the AES puzzle; finalMessage is the plaintext encrypted under each
// player's public key for the final challenge.
func NewEngine(store Store, logger logging.Logger, secretURL, finalMessage string) *Engine {
	return &Engine{
		store:        store,
		logger:       logger.With("module", "game"),
		secretURL:    secretURL,
		finalMessage: finalMessage,
	}
}

// ViewStage returns the player's current stage with its hint text. It is
// read-only apart from lazy creation of the player record.
func (e *Engine) ViewStage(ctx context.Context, userID string) (StageInfo, error) {
	u, err := e.store.EnsureUser(ctx, userID)
	if err != nil {
		return StageInfo{}, err
	}
	return StageInfo{Stage: u.Stage, Progress: u.Progress, Hint: stageHints[u.Stage]}, nil
}

// SubmitAnswer verifies an answer against the puzzle's expected digest and,
// on first success, advances the stage and appends a fresh symmetric key to
// the inventory. Resubmitting the correct answer after the transition is a
// no-op success: the stage never regresses and no second key is granted.
// A wrong answer mutates nothing and never reveals the expected digest.
func (e *Engine) SubmitAnswer(ctx context.Context, userID, puzzleID, answer string) (SubmitResult, error) {
	if answer == "" {
		return SubmitResult{}, fmt.Errorf("empty answer: %w", common.ErrValidation)
	}
	p, ok := lookupPuzzle(puzzleID)
	if !ok {
		return SubmitResult{}, fmt.Errorf("puzzle %q: %w", puzzleID, common.ErrNotFound)
	}

	digest := cryptox.HashAnswer(answer)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(p.ExpectedDigest)) != 1 {
		return SubmitResult{Message: "wrong answer"}, nil
	}

	var result SubmitResult
	err := e.store.Update(ctx, func(doc *storage.Document) error {
		u := doc.EnsureUser(userID)

		// Stage guard: a correct answer for a puzzle the player has already
		// passed must not grant anything again.
		if stageAtOrPast(u.Stage, p.NextStage) {
			result = SubmitResult{Accepted: true, AlreadySolved: true, Message: "already solved"}
			return common.ErrAlreadyIssued
		}
		if u.Stage != p.Stage {
			result = SubmitResult{Message: "puzzle not available at this stage"}
			return common.ErrConflict
		}

		key := common.GenerateRandByteArray(cryptox.KeyLen)
		u.Inventory = append(u.Inventory, storage.SecretItem{ID: uuid.NewString(), AESKey: key})
		u.Stage = p.NextStage
		u.Progress = p.NextProgress
		result = SubmitResult{Accepted: true, Message: "correct"}
		return nil
	})
	switch {
	case err == nil:
		e.logger.Info(ctx, "puzzle solved", "user", userID, "puzzle", puzzleID)
		return result, nil
	case errors.Is(err, common.ErrAlreadyIssued), errors.Is(err, common.ErrConflict):
		// Precondition outcomes carry a result and persist nothing.
		return result, nil
	default:
		return SubmitResult{}, err
	}
}

// RevealSecret returns the secret link in cleartext if the player's
// inventory holds the unlocking key. Otherwise the same logical secret is
// sealed under a fresh key the player does not possess, so only an opaque
// ciphertext is returned and repeated calls yield different bytes.
func (e *Engine) RevealSecret(ctx context.Context, userID string) (Reveal, error) {
	u, err := e.store.EnsureUser(ctx, userID)
	if err != nil {
		return Reveal{}, err
	}

	link := fmt.Sprintf("%s?user=%s", e.secretURL, userID)

	if key := u.FirstAESKey(); key != nil {
		sealed, err := cryptox.SealString(key, link)
		if err != nil {
			return Reveal{}, fmt.Errorf("seal secret link: %w", err)
		}
		// Round-trip through the player's own key. A failure here is an
		// internal invariant violation, never a "locked" response.
		cleartext, err := cryptox.OpenString(key, sealed)
		if err != nil {
			return Reveal{}, fmt.Errorf("secret link round-trip failed for own key: %w", err)
		}
		return Reveal{Unlocked: true, Cleartext: cleartext}, nil
	}

	ephemeral := common.GenerateRandByteArray(cryptox.KeyLen)
	defer common.WipeByteArray(ephemeral)

	sealed, err := cryptox.SealString(ephemeral, link)
	if err != nil {
		return Reveal{}, fmt.Errorf("seal locked secret: %w", err)
	}
	return Reveal{Ciphertext: sealed}, nil
}

// IssueFinalKeypair generates the player's RSA keypair exactly once. The
// public half is stored on the record; the private half is returned to the
// caller and never retained. Any later call is an idempotent no-op that
// returns no key material: regenerating would invalidate whatever was
// already encrypted under the recorded public key.
func (e *Engine) IssueFinalKeypair(ctx context.Context, userID string) (KeypairIssue, error) {
	var issue KeypairIssue
	err := e.store.Update(ctx, func(doc *storage.Document) error {
		u := doc.EnsureUser(userID)
		if u.RSAIssued {
			return common.ErrAlreadyIssued
		}

		privPEM, pubPEM, err := cryptox.NewRSAKeyPair()
		if err != nil {
			return err
		}
		u.RSAPublicKey = string(pubPEM)
		u.RSAIssued = true
		issue = KeypairIssue{PrivateKeyPEM: privPEM}
		return nil
	})
	if errors.Is(err, common.ErrAlreadyIssued) {
		return KeypairIssue{AlreadyIssued: true}, nil
	}
	if err != nil {
		return KeypairIssue{}, err
	}

	e.logger.Info(ctx, "final keypair issued", "user", userID)
	return issue, nil
}

// FinalChallenge encrypts the final message under the player's stored
// public key. Padding is randomized, so each call produces a different
// ciphertext for the same message.
func (e *Engine) FinalChallenge(ctx context.Context, userID string) ([]byte, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.RSAIssued {
		return nil, fmt.Errorf("no keypair issued for %q: %w", userID, common.ErrNotFound)
	}
	return cryptox.EncryptOAEP([]byte(u.RSAPublicKey), []byte(e.finalMessage))
}

// SubmitFinalProof finishes the quest. The check is deliberately weak: any
// non-empty proof from a player who holds an issued keypair is accepted.
// Tightening the verification is a known follow-up, not something this
// method should invent.
func (e *Engine) SubmitFinalProof(ctx context.Context, userID, proof string) (SubmitResult, error) {
	if proof == "" {
		return SubmitResult{}, fmt.Errorf("empty proof: %w", common.ErrValidation)
	}

	var result SubmitResult
	err := e.store.Update(ctx, func(doc *storage.Document) error {
		u := doc.EnsureUser(userID)
		if !u.RSAIssued {
			result = SubmitResult{Message: "no keypair issued"}
			return common.ErrNotFound
		}
		u.Stage = storage.StageFinished
		u.Progress = 100
		result = SubmitResult{Accepted: true, Message: "quest finished"}
		return nil
	})
	switch {
	case err == nil:
		e.logger.Info(ctx, "quest finished", "user", userID)
		return result, nil
	case errors.Is(err, common.ErrNotFound):
		return result, nil
	default:
		return SubmitResult{}, err
	}
}
