// Package storage implements the encrypted persistent state store. The whole
// user database is one JSON document, sealed with AES-GCM under a master key
// and rewritten atomically on every mutation.
package storage

// Stage is a player's position in the fixed puzzle progression graph.
// Normal play only ever moves a stage forward.
type Stage string

const (
	StageIntro    Stage = "intro"
	StageAfterC1  Stage = "after_c1"
	StageFinished Stage = "finished"
)

// SecretItem is one issued secret in a player's inventory, currently always
// a symmetric key. The ID lets callers reference a grant without comparing
// key bytes.
type SecretItem struct {
	ID     string `json:"id"`
	AESKey []byte `json:"aes_key"`
}

// UserRecord holds one player's full persistent state.
type UserRecord struct {
	UserID    string       `json:"user_id"`
	Stage     Stage        `json:"stage"`
	Progress  int          `json:"progress"`
	Inventory []SecretItem `json:"inventory"`

	// RSAPublicKey is set exactly once, when the final keypair is issued.
	// Only the public half is ever stored server-side.
	RSAPublicKey string `json:"rsa_public_key,omitempty"`
	RSAIssued    bool   `json:"rsa_issued"`
}

// FirstAESKey returns the first symmetric key in the inventory, or nil when
// the player has not earned one yet.
func (u *UserRecord) FirstAESKey() []byte {
	for _, item := range u.Inventory {
		if len(item.AESKey) > 0 {
			return item.AESKey
		}
	}
	return nil
}

// Document is the aggregate persisted as a single encrypted blob: all user
// records plus the certificate-fingerprint mapping. It is the sole unit of
// durability; partial writes never hit disk.
type Document struct {
	Users        map[string]*UserRecord `json:"users"`
	CertMappings map[string]string      `json:"cert_mappings"`
}

// NewDocument returns an empty document with initialized maps.
func NewDocument() *Document {
	return &Document{
		Users:        make(map[string]*UserRecord),
		CertMappings: make(map[string]string),
	}
}

// NewUserRecord returns the fixed default record created on first reference
// to a user id.
func NewUserRecord(id string) *UserRecord {
	return &UserRecord{
		UserID:    id,
		Stage:     StageIntro,
		Progress:  0,
		Inventory: []SecretItem{},
	}
}

// EnsureUser returns the record for id, creating the default record in the
// document if it is absent.
func (d *Document) EnsureUser(id string) *UserRecord {
	if u, ok := d.Users[id]; ok {
		return u
	}
	u := NewUserRecord(id)
	d.Users[id] = u
	return u
}
