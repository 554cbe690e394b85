package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Per-user token store: a 0600 file holding AES-GCM sealed personal access
// tokens keyed by organization URL. Not a replacement for OS keychains, but
// keeps tokens out of config.toml.

const fileName = "tokens.json"

// ErrNoToken is returned when no token is stored for an organization.
var ErrNoToken = errors.New("no token stored")

type tokenFile struct {
	Tokens map[string]string `json:"tokens"` // organization -> base64(ciphertext)
}

// StoreToken seals and saves token for organization.
func StoreToken(organization, token string) error {
	org := norm(organization)
	if org == "" {
		return fmt.Errorf("organization required")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token required")
	}
	path, err := filePath()
	if err != nil {
		return err
	}
	tf, err := load(path)
	if err != nil {
		return err
	}
	if tf.Tokens == nil {
		tf.Tokens = map[string]string{}
	}
	ct, err := seal([]byte(token))
	if err != nil {
		return err
	}
	tf.Tokens[org] = base64.StdEncoding.EncodeToString(ct)
	return save(path, tf)
}

// FetchToken returns the stored token for organization, or ErrNoToken.
func FetchToken(organization string) (string, error) {
	org := norm(organization)
	if org == "" {
		return "", fmt.Errorf("organization required")
	}
	path, err := filePath()
	if err != nil {
		return "", err
	}
	tf, err := load(path)
	if err != nil {
		return "", err
	}
	enc, ok := tf.Tokens[org]
	if !ok {
		return "", ErrNoToken
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	pt, err := open(raw)
	if err != nil {
		return "", fmt.Errorf("open token: %w", err)
	}
	return string(pt), nil
}

// DeleteToken forgets the token for organization. Deleting a missing token is
// not an error.
func DeleteToken(organization string) error {
	org := norm(organization)
	if org == "" {
		return fmt.Errorf("organization required")
	}
	path, err := filePath()
	if err != nil {
		return err
	}
	tf, err := load(path)
	if err != nil {
		return err
	}
	if _, ok := tf.Tokens[org]; !ok {
		return nil
	}
	delete(tf.Tokens, org)
	return save(path, tf)
}

// Resolve picks a token from the env var named envName, then the local
// store, then configured.
func Resolve(envName, organization, configured string) (string, error) {
	if envName != "" {
		if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
			return v, nil
		}
	}
	tok, err := FetchToken(organization)
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, ErrNoToken) {
		return "", err
	}
	if configured != "" {
		return configured, nil
	}
	return "", ErrNoToken
}

func filePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "taskcards")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func load(path string) (tokenFile, error) {
	var tf tokenFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tokenFile{}, nil
		}
		return tf, err
	}
	if err := json.Unmarshal(data, &tf); err != nil {
		return tf, fmt.Errorf("parse %s: %w", path, err)
	}
	return tf, nil
}

func save(path string, tf tokenFile) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func norm(s string) string {
	return strings.TrimRight(strings.TrimSpace(strings.ToLower(s)), "/")
}

func aead() (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(fmt.Sprintf("taskcards-%s-%s", runtime.GOOS, os.Getenv("USER"))))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(plain []byte) ([]byte, error) {
	gcm, err := aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func open(ciphertext []byte) ([]byte, error) {
	gcm, err := aead()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
