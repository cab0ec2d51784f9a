package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Argon2id parameters for stored PIN hashes. A PIN has little entropy, so
// the memory cost carries the weight.
const (
	pinTime    uint32 = 3
	pinMemory  uint32 = 64 * 1024
	pinThreads uint8  = 2
	pinKeyLen  uint32 = 32
	pinSaltLen        = 16
)

// HashPIN returns an encoded argon2id hash of pin in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
func HashPIN(pin string) (string, error) {
	if pin == "" {
		return "", payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"field": "pin"})
	}
	salt := make([]byte, pinSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(pin), salt, pinTime, pinMemory, pinThreads, pinKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, pinMemory, pinTime, pinThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPIN checks pin against an encoded hash from HashPIN. A wrong code
// returns ErrPINIncorrect; an unreadable hash returns ErrConfigInvalid.
func VerifyPIN(encoded, pin string) error {
	params, salt, want, err := decodePINHash(encoded)
	if err != nil {
		return err
	}
	got := argon2.IDKey([]byte(pin), salt, params.time, params.memory, params.threads, uint32(len(want))) //nolint:gosec // G115: key length is small
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return payerr.ErrPINIncorrect
	}
	return nil
}

type pinParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decodePINHash(encoded string) (pinParams, []byte, []byte, error) {
	var p pinParams
	invalid := func(reason string) error {
		return payerr.WithDetails(payerr.ErrConfigInvalid, map[string]string{"field": "auth.pin_hash", "reason": reason})
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, invalid("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, invalid("unsupported argon2 version")
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil ||
		p.memory == 0 || p.time == 0 || p.threads == 0 {
		return p, nil, nil, invalid("bad argon2 parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, invalid("bad salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, invalid("bad key")
	}
	return p, salt, key, nil
}
