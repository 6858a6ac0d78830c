package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-busticketing/internal/models"
)

const imageSize = 256

type QRGenerator struct {
	aead cipher.AEAD
}

func NewQRGenerator(secret string) (*QRGenerator, error) {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &QRGenerator{aead: aead}, nil
}

// Seal encrypts the boarding data into a URL-safe token.
func (q *QRGenerator) Seal(data models.TicketForBoarding) (string, error) {
	plain, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, q.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := q.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Tampered or foreign tokens fail with ErrInvalidBoardingPass.
func (q *QRGenerator) Open(token string) (models.TicketForBoarding, error) {
	var data models.TicketForBoarding

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return data, fmt.Errorf("decode: %w", models.ErrInvalidBoardingPass)
	}
	if len(raw) < q.aead.NonceSize() {
		return data, models.ErrInvalidBoardingPass
	}

	nonce, ciphertext := raw[:q.aead.NonceSize()], raw[q.aead.NonceSize():]
	plain, err := q.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return data, fmt.Errorf("decrypt: %w", models.ErrInvalidBoardingPass)
	}
	if err := json.Unmarshal(plain, &data); err != nil {
		return data, fmt.Errorf("payload: %w", models.ErrInvalidBoardingPass)
	}
	return data, nil
}

// GenerateEncryptedQR returns a PNG QR code carrying the sealed boarding data.
func (q *QRGenerator) GenerateEncryptedQR(data models.TicketForBoarding) ([]byte, error) {
	token, err := q.Seal(data)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, imageSize)
}
