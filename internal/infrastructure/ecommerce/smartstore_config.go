package ecommerce

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/blowfish"
)

// SmartStoreConfig holds configuration for the Naver Commerce API
type SmartStoreConfig struct {
	// ClientID is the application id issued by the commerce API center
	ClientID string
	// ClientSecret is a bcrypt salt string ("$2a$04$...") issued with the application
	ClientSecret string
	// APIBaseURL is the base URL of the commerce API
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// SmartStoreProductionAPIURL is the production API endpoint
const SmartStoreProductionAPIURL = "https://api.commerce.naver.com/external"

// Errors for SmartStore configuration
var (
	ErrSmartStoreConfigMissingClientID     = errors.New("smartstore: client id is required")
	ErrSmartStoreConfigMissingClientSecret = errors.New("smartstore: client secret is required")
	ErrSmartStoreInvalidClientSecret       = errors.New("smartstore: client secret is not a bcrypt salt")
)

// NewSmartStoreConfig creates a SmartStore configuration with defaults
func NewSmartStoreConfig(clientID, clientSecret string) *SmartStoreConfig {
	return &SmartStoreConfig{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		APIBaseURL:     SmartStoreProductionAPIURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills defaults
func (c *SmartStoreConfig) Validate() error {
	if c.ClientID == "" {
		return ErrSmartStoreConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrSmartStoreConfigMissingClientSecret
	}
	if _, _, err := parseBcryptSalt(c.ClientSecret); err != nil {
		return err
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = SmartStoreProductionAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Sign builds client_secret_sign for the token request:
// base64(bcrypt(client_id + "_" + timestamp, salt = client_secret)).
func (c *SmartStoreConfig) Sign(timestampMillis int64) (string, error) {
	password := c.ClientID + "_" + strconv.FormatInt(timestampMillis, 10)
	hashed, err := bcryptWithSalt([]byte(password), c.ClientSecret)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(hashed), nil
}

// ---------------------------------------------------------------------------
// bcrypt with a caller-provided salt
// ---------------------------------------------------------------------------

// x/crypto/bcrypt always generates a random salt, while the commerce API
// requires the issued secret to be used as the salt. The hashing below
// produces the same "$2a$" output as bcrypt.GenerateFromPassword.

const (
	bcryptEncodedSaltSize = 22
	bcryptCryptedSize     = 23
)

var bcryptEncoding = base64.NewEncoding("./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// "OrpheanBeholderScryDoubt"
var bcryptMagic = []byte{
	0x4f, 0x72, 0x70, 0x68, 0x65, 0x61, 0x6e, 0x42,
	0x65, 0x68, 0x6f, 0x6c, 0x64, 0x65, 0x72, 0x53,
	0x63, 0x72, 0x79, 0x44, 0x6f, 0x75, 0x62, 0x74,
}

// parseBcryptSalt splits "$2a$04$<22 chars>" into its prefix ("$2a$04$"), cost and encoded salt
func parseBcryptSalt(secret string) (string, int, error) {
	const prefixLen = 7
	if len(secret) < prefixLen+bcryptEncodedSaltSize || secret[0] != '$' || secret[1] != '2' {
		return "", 0, ErrSmartStoreInvalidClientSecret
	}
	if secret[3] != '$' || secret[6] != '$' {
		return "", 0, ErrSmartStoreInvalidClientSecret
	}
	cost, err := strconv.Atoi(secret[4:6])
	if err != nil || cost < 4 || cost > 31 {
		return "", 0, fmt.Errorf("%w: invalid cost", ErrSmartStoreInvalidClientSecret)
	}
	return secret[:prefixLen], cost, nil
}

func bcryptWithSalt(password []byte, secret string) ([]byte, error) {
	prefix, cost, err := parseBcryptSalt(secret)
	if err != nil {
		return nil, err
	}
	encodedSalt := []byte(secret[len(prefix) : len(prefix)+bcryptEncodedSaltSize])
	salt, err := bcryptDecode(encodedSalt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSmartStoreInvalidClientSecret, err)
	}

	// C implementations include the trailing NUL of the key
	key := append(password[:len(password):len(password)], 0)
	c, err := blowfish.NewSaltedCipher(key, salt)
	if err != nil {
		return nil, err
	}
	rounds := uint64(1) << cost
	for i := uint64(0); i < rounds; i++ {
		blowfish.ExpandKey(key, c)
		blowfish.ExpandKey(salt, c)
	}

	data := make([]byte, len(bcryptMagic))
	copy(data, bcryptMagic)
	for i := 0; i < len(data); i += 8 {
		for j := 0; j < 64; j++ {
			c.Encrypt(data[i:i+8], data[i:i+8])
		}
	}

	out := make([]byte, 0, len(prefix)+bcryptEncodedSaltSize+31)
	out = append(out, prefix...)
	out = append(out, encodedSalt...)
	out = append(out, bcryptEncode(data[:bcryptCryptedSize])...)
	return out, nil
}

func bcryptEncode(src []byte) []byte {
	dst := make([]byte, bcryptEncoding.EncodedLen(len(src)))
	bcryptEncoding.Encode(dst, src)
	for dst[len(dst)-1] == '=' {
		dst = dst[:len(dst)-1]
	}
	return dst
}

func bcryptDecode(src []byte) ([]byte, error) {
	padded := make([]byte, len(src), len(src)+3)
	copy(padded, src)
	for len(padded)%4 != 0 {
		padded = append(padded, '=')
	}
	dst := make([]byte, bcryptEncoding.DecodedLen(len(padded)))
	n, err := bcryptEncoding.Decode(dst, padded)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
