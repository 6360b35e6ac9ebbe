package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"
)

// hkdfInfo lie la clé dérivée à son usage : changer cette étiquette
// invalide tous les chiffrés existants.
const hkdfInfo = "cadok-address-encryption-v1"

// MinKeyLength est la taille minimale acceptée pour la clé maîtresse.
const MinKeyLength = 32

// AddressCipher chiffre et déchiffre les adresses postales avec une clé
// système. Chiffrement authentifié : toute altération du chiffré est
// détectée au déchiffrement. Sans état, aucun appel externe.
type AddressCipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
	nonceSize int
}

// NewAddressCipher dérive la clé AEAD (XChaCha20-Poly1305) de la clé
// maîtresse via HKDF-SHA256.
func NewAddressCipher(masterKey string) (*AddressCipher, error) {
	if len(masterKey) < MinKeyLength {
		return nil, fmt.Errorf("crypto: la clé maîtresse doit faire au moins %d octets", MinKeyLength)
	}

	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(hkdfInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("crypto: dérivation de la clé: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: initialisation AEAD: %w", err)
	}

	return &AddressCipher{aead: aead, nonceSize: chacha20poly1305.NonceSizeX}, nil
}

// Encrypt chiffre une adresse en clair. Le nonce aléatoire est préfixé au
// chiffré ; la sortie base64 peut être stockée dans une colonne TEXT.
func (c *AddressCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "l'adresse à chiffrer ne peut pas être vide")
	}

	nonce := make([]byte, c.nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: génération du nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt déchiffre une adresse. Un échec signifie une altération du
// chiffré ou une mauvaise clé : l'appelant doit traiter cette erreur comme
// fatale pour l'enregistrement concerné, jamais la réessayer.
func (c *AddressCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeIntegrity, "chiffré illisible")
	}

	if len(raw) < c.nonceSize {
		return "", apperror.New(apperror.ErrCodeIntegrity, "chiffré tronqué")
	}

	nonce, sealed := raw[:c.nonceSize], raw[c.nonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeIntegrity, "échec d'authentification du chiffré")
	}

	return string(plain), nil
}
